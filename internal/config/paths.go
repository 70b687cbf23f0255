package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns <user-config>/whisper_aloud/config.json.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "whisper_aloud", "config.json"), nil
}

// DefaultDataDir returns <user-data>/whisper_aloud, honoring
// XDG_DATA_HOME when set, matching the teacher's own reliance on
// XDG-style environment resolution for its rules file search.
func DefaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "whisper_aloud"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "whisper_aloud"), nil
}

// HistoryDBPath returns <user-data>/whisper_aloud/history.db, honoring
// an explicit PersistenceConfig.DataDir override when set.
func HistoryDBPath(cfg Config) (string, error) {
	dir := cfg.Persistence.DataDir
	if dir == "" {
		var err error
		dir, err = DefaultDataDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "history.db"), nil
}

// ArchiveDir returns <user-data>/whisper_aloud/audio.
func ArchiveDir(cfg Config) (string, error) {
	dir := cfg.Persistence.DataDir
	if dir == "" {
		var err error
		dir, err = DefaultDataDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "audio"), nil
}
