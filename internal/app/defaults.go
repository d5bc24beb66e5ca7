package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the default locations of vfm's files.
type Defaults struct {
	ConfigPath  string
	BaseDir     string
	LogDir      string
	SessionPath string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VFM_CONFIG_PATH: config file location (default: ~/.config/vfm.toml)
//   - VFM_HOME: base directory for vfm data (default: ~/.local/share/vfm)
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		SessionPath: SessionPath(baseDir),
	}, nil
}

// SessionPath is where the login session for baseDir is kept.
func SessionPath(baseDir string) string {
	return filepath.Join(baseDir, "session.toml")
}

// getConfigPath returns the config file path, checking VFM_CONFIG_PATH env var first,
// then falling back to the default ~/.config/vfm.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("VFM_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "vfm.toml"), nil
}

// getBaseDir returns the base directory for vfm data, checking VFM_HOME env var first,
// then falling back to the XDG default ~/.local/share/vfm.
func getBaseDir() (string, error) {
	if path := os.Getenv("VFM_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "vfm"), nil
}
