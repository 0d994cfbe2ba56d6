//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "sonarchat")
	}
	return "sonarchat-data"
}

func secretHint() string {
	return " or macOS Keychain (service: sonarchat)"
}
