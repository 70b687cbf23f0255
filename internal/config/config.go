// Package config loads the engine's nested configuration snapshot from
// a JSON file with environment-variable overrides, using
// github.com/spf13/viper for the env-override key walk (SPEC_FULL §6),
// grounded on the pack's ViperProvider usage.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the immutable-per-load nested configuration snapshot. The
// running core owns one at a time; ReloadConfig swaps the pointer
// atomically at idle boundaries only — this type itself is never
// mutated in place.
type Config struct {
	Model           ModelConfig           `json:"model" mapstructure:"model"`
	Transcription   TranscriptionConfig   `json:"transcription" mapstructure:"transcription"`
	Audio           AudioConfig           `json:"audio" mapstructure:"audio"`
	AudioProcessing AudioProcessingConfig `json:"audio_processing" mapstructure:"audio_processing"`
	Clipboard       ClipboardConfig       `json:"clipboard" mapstructure:"clipboard"`
	Persistence     PersistenceConfig     `json:"persistence" mapstructure:"persistence"`
	Hotkey          HotkeyConfig          `json:"hotkey" mapstructure:"hotkey"`
}

type ModelConfig struct {
	Name          string `json:"name" mapstructure:"name"`
	ComputeDevice string `json:"compute_device" mapstructure:"compute_device"` // auto|cpu|gpu
	Path          string `json:"path" mapstructure:"path"`
}

type TranscriptionConfig struct {
	LanguageHint string       `json:"language_hint" mapstructure:"language_hint"`
	Rules        RulesConfig  `json:"rules" mapstructure:"rules"`
}

// RulesConfig follows the teacher's RulesConfig shape.
type RulesConfig struct {
	Path           string `json:"path" mapstructure:"path"`
	IterationLimit int    `json:"iteration_limit" mapstructure:"iteration_limit"`
}

type AudioConfig struct {
	SampleRate          int     `json:"sample_rate" mapstructure:"sample_rate"`
	Channels            int     `json:"channels" mapstructure:"channels"`
	DeviceID            string  `json:"device_id" mapstructure:"device_id"`
	InputFormat         string  `json:"input_format" mapstructure:"input_format"`
	RecorderCommand     string  `json:"recorder_command" mapstructure:"recorder_command"`
	ChunkDurationSec    float64 `json:"chunk_duration_sec" mapstructure:"chunk_duration_sec"`
	MaxDurationSec      float64 `json:"max_duration_sec" mapstructure:"max_duration_sec"`
}

type AudioProcessingConfig struct {
	NoiseGateEnabled     bool    `json:"noise_gate_enabled" mapstructure:"noise_gate_enabled"`
	NoiseGateThresholdDB float64 `json:"noise_gate_threshold_db" mapstructure:"noise_gate_threshold_db"`
	AGCEnabled           bool    `json:"agc_enabled" mapstructure:"agc_enabled"`
	AGCTargetDB          float64 `json:"agc_target_db" mapstructure:"agc_target_db"`
	AGCMaxGainDB         float64 `json:"agc_max_gain_db" mapstructure:"agc_max_gain_db"`
	AGCMinGainDB         float64 `json:"agc_min_gain_db" mapstructure:"agc_min_gain_db"`
	AGCWindowMs          float64 `json:"agc_window_ms" mapstructure:"agc_window_ms"`
	AGCAttackMs          float64 `json:"agc_attack_ms" mapstructure:"agc_attack_ms"`
	AGCReleaseMs         float64 `json:"agc_release_ms" mapstructure:"agc_release_ms"`
	DenoiseEnabled       bool    `json:"denoise_enabled" mapstructure:"denoise_enabled"`
	DenoiseStrength      float64 `json:"denoise_strength" mapstructure:"denoise_strength"`
	LimiterEnabled       bool    `json:"limiter_enabled" mapstructure:"limiter_enabled"`
	LimiterCeilingDB     float64 `json:"limiter_ceiling_db" mapstructure:"limiter_ceiling_db"`
}

type ClipboardConfig struct {
	CopyAfter  bool `json:"copy_after" mapstructure:"copy_after"`
	PasteAfter bool `json:"paste_after" mapstructure:"paste_after"`
}

type PersistenceConfig struct {
	ArchiveAudio  bool   `json:"archive_audio" mapstructure:"archive_audio"`
	SaveEmpty     bool   `json:"save_empty" mapstructure:"save_empty"`
	RetentionDays int    `json:"retention_days" mapstructure:"retention_days"`
	MaxEntries    int    `json:"max_entries" mapstructure:"max_entries"`
	DataDir       string `json:"data_dir" mapstructure:"data_dir"`
}

// HotkeyConfig is accepted/round-tripped but unused by the core beyond
// storage, since hotkey binding is a front-end concern. Backend names
// which front-end binding mechanism the user has wired up (e.g.
// "external", "evdev", "x11", "wayland"); the core only reports it back
// through GetStatus, it never binds the key itself.
type HotkeyConfig struct {
	ToggleRecording string `json:"toggle_recording" mapstructure:"toggle_recording"`
	Backend         string `json:"backend" mapstructure:"backend"`
}

const envPrefix = "WHISPER_ALOUD"

// Load reads path (creating nothing if it's absent — defaults apply)
// and layers WHISPER_ALOUD_* environment overrides on top. It also
// returns the raw top-level JSON object so Save can re-merge any keys
// this struct doesn't know about, forward-compatibly.
func Load(path string) (Config, map[string]json.RawMessage, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var unknown map[string]json.RawMessage
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &unknown); err != nil {
			return Config{}, nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := v.ReadConfig(strings.NewReader(string(raw))); err != nil {
			return Config{}, nil, fmt.Errorf("load config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyBounds(&cfg)

	if cfg.Transcription.Rules.Path == "" {
		cfg.Transcription.Rules.Path = firstExistingRulesPath()
	}

	return cfg, unknown, nil
}

// Save writes cfg back to path, re-merging any unknown top-level keys
// captured by a prior Load so forward-compat fields round-trip.
func Save(path string, cfg Config, unknown map[string]json.RawMessage) error {
	typed, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(typed, &merged); err != nil {
		return fmt.Errorf("remarshal config: %w", err)
	}
	for k, v := range unknown {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func applyBounds(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkDurationSec <= 0 {
		cfg.Audio.ChunkDurationSec = 0.1
	}
	if cfg.Transcription.Rules.IterationLimit <= 0 {
		cfg.Transcription.Rules.IterationLimit = 30
	}
	if cfg.Persistence.RetentionDays < 0 {
		cfg.Persistence.RetentionDays = 0
	}
}

func firstExistingRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidates := []string{
		filepath.Join(home, ".config", "whisper_aloud", "substitutions.rules"),
		filepath.Join(home, ".config", "hypr", "whisper-substitutions.rules"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
