package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asyncdoggo/locker/internal/archiver"
)

// Config holds all application configuration.
type Config struct {
	Archive ArchiveConfig `mapstructure:"archive"`
	Output  OutputConfig  `mapstructure:"output"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogConfig     `mapstructure:"log"`
}

// ArchiveConfig selects the container format used by lock.
type ArchiveConfig struct {
	Format string `mapstructure:"format"` // tarfile, shutil, zipfile, pickle, json
}

// OutputConfig controls where envelopes and restored folders go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"` // empty = next to the input
}

// JournalConfig for the lock journal database.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`   // empty = stderr
}

// DefaultDir is where the config file and journal live by default.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "locker")
	}
	return ".locker"
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Format: string(archiver.FormatTar),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultDir(), "journal.db"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !archiver.Format(c.Archive.Format).Valid() {
		return fmt.Errorf("%w: archive.format %q", archiver.ErrUnknownFormat, c.Archive.Format)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates the parent directories of the journal and log
// file.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
