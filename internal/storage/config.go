package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Storage modes.
const (
	ModeScoped = "scoped" // photos live in the media index
	ModeLegacy = "legacy" // photos live in a public directory tree
)

// Backends for the settings store.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Fixed locations shared by every installation.
const (
	AppRelativeRoot   = "Pictures/GalleryOrganizer/"
	ExportRelativeDir = "Download/GalleryOrganizer/"
	legacyDirName     = "GalleryOrganizer"
)

// ConfigEnvVar overrides the config file location.
const ConfigEnvVar = "GORG_CONFIG"

// Config holds application configuration.
type Config struct {
	Mode        string `json:"mode"`
	Backend     string `json:"backend"`
	DataDir     string `json:"dataDir"`
	PicturesDir string `json:"picturesDir"`
	ExportDir   string `json:"exportDir"`
	LogLevel    string `json:"logLevel"`
	LogFormat   string `json:"logFormat"`
}

// DefaultConfig returns the default configuration rooted at home.
func DefaultConfig(home string) Config {
	return Config{
		Mode:        ModeScoped,
		DataDir:     filepath.Join(home, ".config", "gorg"),
		PicturesDir: filepath.Join(home, "Pictures"),
		ExportDir:   filepath.Join(home, "Downloads", legacyDirName),
		LogLevel:    "info",
		LogFormat:   "pretty",
	}
}

// LoadConfig reads config from the JSON file.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	defaults := DefaultConfig(home)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config := defaults
			// Non-fatal: return defaults even if save fails
			_ = SaveConfig(path, &config)
			return &config, nil
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	// Apply defaults for missing fields
	if config.Mode != ModeLegacy {
		config.Mode = defaults.Mode
	}
	if config.DataDir == "" {
		config.DataDir = defaults.DataDir
	}
	if config.PicturesDir == "" {
		config.PicturesDir = defaults.PicturesDir
	}
	if config.ExportDir == "" {
		config.ExportDir = defaults.ExportDir
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}

	return &config, nil
}

// SaveConfig writes config to the JSON file.
// Creates the directory if it doesn't exist.
func SaveConfig(path string, config *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfigFilePath returns $GORG_CONFIG or ~/.config/gorg/config.json.
func DefaultConfigFilePath() (string, error) {
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "gorg", "config.json"), nil
}

// Legacy reports whether photos are managed as plain files.
func (c *Config) Legacy() bool {
	return c.Mode == ModeLegacy
}

// PrefsJSONPath is the JSON settings file.
func (c *Config) PrefsJSONPath() string {
	return filepath.Join(c.DataDir, "prefs.json")
}

// PrefsDBPath is the SQLite settings database.
func (c *Config) PrefsDBPath() string {
	return filepath.Join(c.DataDir, "prefs.db")
}

// MediaDBPath is the media index database.
func (c *Config) MediaDBPath() string {
	return filepath.Join(c.DataDir, "media.db")
}

// MediaBlobDir holds the bytes of media index rows.
func (c *Config) MediaBlobDir() string {
	return filepath.Join(c.DataDir, "media")
}

// LegacyRoot is the directory holding one subdirectory per folder in legacy mode.
func (c *Config) LegacyRoot() string {
	return filepath.Join(c.PicturesDir, legacyDirName)
}
