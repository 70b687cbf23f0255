package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, unknown, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, unknown)

	require.Equal(t, "base", cfg.Model.Name)
	require.Equal(t, "auto", cfg.Model.ComputeDevice)
	require.Equal(t, 16000, cfg.Audio.SampleRate)
	require.Equal(t, 1, cfg.Audio.Channels)
	require.Equal(t, 30, cfg.Transcription.Rules.IterationLimit)
	require.False(t, cfg.Persistence.ArchiveAudio)
	require.Equal(t, 90, cfg.Persistence.RetentionDays)
}

func TestLoadReadsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"model": {"name": "small", "compute_device": "cpu"},
		"audio": {"sample_rate": 22050, "channels": 2},
		"persistence": {"archive_audio": true, "retention_days": 7}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, _, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "small", cfg.Model.Name)
	require.Equal(t, "cpu", cfg.Model.ComputeDevice)
	require.Equal(t, 22050, cfg.Audio.SampleRate)
	require.Equal(t, 2, cfg.Audio.Channels)
	require.True(t, cfg.Persistence.ArchiveAudio)
	require.Equal(t, 7, cfg.Persistence.RetentionDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"model": {"name": "small"}, "audio": {"sample_rate": 22050}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("WHISPER_ALOUD_MODEL_NAME", "large")
	t.Setenv("WHISPER_ALOUD_AUDIO_SAMPLE_RATE", "48000")
	t.Setenv("WHISPER_ALOUD_PERSISTENCE_ARCHIVE_AUDIO", "true")

	cfg, _, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "large", cfg.Model.Name)
	require.Equal(t, 48000, cfg.Audio.SampleRate)
	require.True(t, cfg.Persistence.ArchiveAudio)
}

func TestLoadAppliesBoundsToInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"audio": {"sample_rate": 0, "channels": -1, "chunk_duration_sec": -2},
		"transcription": {"rules": {"iteration_limit": 0}},
		"persistence": {"retention_days": -5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, _, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 16000, cfg.Audio.SampleRate)
	require.Equal(t, 1, cfg.Audio.Channels)
	require.Equal(t, 0.1, cfg.Audio.ChunkDurationSec)
	require.Equal(t, 30, cfg.Transcription.Rules.IterationLimit)
	require.Equal(t, 0, cfg.Persistence.RetentionDays)
}

func TestLoadFallsBackToRulesPathWhenUnset(t *testing.T) {
	home := t.TempDir()
	hyprRules := filepath.Join(home, ".config", "hypr", "whisper-substitutions.rules")
	require.NoError(t, os.MkdirAll(filepath.Dir(hyprRules), 0o755))
	require.NoError(t, os.WriteFile(hyprRules, []byte("a => b\n"), 0o600))
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.json")
	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, hyprRules, cfg.Transcription.Rules.Path)

	whisperRules := filepath.Join(home, ".config", "whisper_aloud", "substitutions.rules")
	require.NoError(t, os.MkdirAll(filepath.Dir(whisperRules), 0o755))
	require.NoError(t, os.WriteFile(whisperRules, []byte("a => c\n"), 0o600))

	cfg2, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, whisperRules, cfg2.Transcription.Rules.Path)
}

func TestSaveRoundTripsAndPreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	cfg.Model.Name = "medium"

	unknown := map[string]json.RawMessage{
		"experimental_feature": json.RawMessage(`{"enabled": true}`),
	}
	require.NoError(t, Save(path, cfg, unknown))

	reloaded, gotUnknown, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "medium", reloaded.Model.Name)
	require.Contains(t, gotUnknown, "experimental_feature")
	require.JSONEq(t, `{"enabled": true}`, string(gotUnknown["experimental_feature"]))
}

func TestSaveDoesNotOverwriteKnownKeysWithUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	cfg.Model.Name = "tiny"

	unknown := map[string]json.RawMessage{
		"model": json.RawMessage(`{"name": "should-not-win"}`),
	}
	require.NoError(t, Save(path, cfg, unknown))

	reloaded, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "tiny", reloaded.Model.Name)
}
