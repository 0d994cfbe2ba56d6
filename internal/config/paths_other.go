//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

func dataHome() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return dir
}

func defaultDataDir() string {
	return filepath.Join(dataHome(), "sonarchat")
}

func secretHint() string {
	return " or " + secretsFilePath()
}
