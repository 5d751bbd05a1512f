// Package config provides configuration management for the carton CLI.
package config

import (
	"os"
	"path/filepath"
)

// Dir returns the carton config directory.
// Uses XDG_CONFIG_HOME/carton, defaulting to ~/.config/carton.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "carton"), nil
}

// File returns the path of the carton config file.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
