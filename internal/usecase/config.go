package usecase

import (
	"github.com/fede/whisperaloud/internal/config"
	"github.com/fede/whisperaloud/internal/dsp"
	"github.com/fede/whisperaloud/internal/ports"
)

// runtimeConfig is the subset of config.Config the controller acts on
// directly; it is rebuilt from config.Config on load, set_config and
// reload_config.
type runtimeConfig struct {
	Audio         ports.AudioConfig
	DSP           dsp.Config
	ModelID       string
	LanguageHint  string
	ArchiveAudio  bool
	SaveEmpty     bool
	HotkeyBackend string
}

func deriveRuntimeConfig(full config.Config) runtimeConfig {
	ap := full.AudioProcessing
	return runtimeConfig{
		Audio: ports.AudioConfig{
			SampleRate:          full.Audio.SampleRate,
			Channels:            full.Audio.Channels,
			InputFormat:         full.Audio.InputFormat,
			InputDevice:         full.Audio.DeviceID,
			ChunkDuration:       full.Audio.ChunkDurationSec,
			MaxRecordingSeconds: full.Audio.MaxDurationSec,
		},
		DSP: dsp.Config{
			SampleRate: full.Audio.SampleRate,
			Gate: dsp.GateConfig{
				Enabled:     ap.NoiseGateEnabled,
				ThresholdDB: ap.NoiseGateThresholdDB,
				AttackMs:    5,
				ReleaseMs:   50,
			},
			AGC: dsp.AGCConfig{
				Enabled:   ap.AGCEnabled,
				TargetDB:  ap.AGCTargetDB,
				MaxGainDB: ap.AGCMaxGainDB,
				MinGainDB: ap.AGCMinGainDB,
				AttackMs:  ap.AGCAttackMs,
				ReleaseMs: ap.AGCReleaseMs,
				WindowMs:  ap.AGCWindowMs,
			},
			Denoiser: dsp.DenoiserConfig{
				Enabled:     ap.DenoiseEnabled,
				Strength:    ap.DenoiseStrength,
				PrimeFrames: 3,
			},
			Limiter: dsp.LimiterConfig{
				Enabled:   ap.LimiterEnabled,
				CeilingDB: ap.LimiterCeilingDB,
			},
		},
		ModelID:       full.Model.Name,
		LanguageHint:  full.Transcription.LanguageHint,
		ArchiveAudio:  full.Persistence.ArchiveAudio,
		SaveEmpty:     full.Persistence.SaveEmpty,
		HotkeyBackend: full.Hotkey.Backend,
	}
}
