package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - H2HCAT_CONFIG_PATH: config file location (default: ~/.config/h2hcat.toml)
//   - H2HCAT_HOME: base directory for h2hcat data (default: ~/.local/share/h2hcat)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking H2HCAT_CONFIG_PATH env
// var first, then falling back to the default ~/.config/h2hcat.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("H2HCAT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "h2hcat.toml"), nil
}

// getBaseDir returns the base directory for h2hcat data, checking H2HCAT_HOME
// env var first, then falling back to the XDG default ~/.local/share/h2hcat.
func getBaseDir() (string, error) {
	if path := os.Getenv("H2HCAT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "h2hcat"), nil
}
