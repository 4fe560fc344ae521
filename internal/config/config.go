package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// LocalSettingsFile is picked up from the working directory before the global one
	LocalSettingsFile = "chatload.yaml"
)

var (
	// ConfigDir is the global configuration directory (~/.chatload)
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string

	// SettingsFile is the global settings file
	SettingsFile string
)

// Initialize sets up the configuration directory.
// It creates ~/.chatload/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitializeAt(filepath.Join(homeDir, ".chatload"))
}

// InitializeAt is Initialize rooted at dir
func InitializeAt(dir string) error {
	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, "chatload.db")
	SettingsFile = filepath.Join(ConfigDir, "settings.yaml")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}
	return nil
}

// GetSettingsFilePath returns the settings file path (local or global).
// The returned file may not exist.
func GetSettingsFilePath() string {
	if _, err := os.Stat(LocalSettingsFile); err == nil {
		return LocalSettingsFile
	}
	return SettingsFile
}

// ErrSettingsNotFound is returned by LoadSettings when an explicit file is missing
var ErrSettingsNotFound = errors.New("settings file not found")
