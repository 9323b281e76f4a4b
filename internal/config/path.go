// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDatabasePath is where the ledger database lives unless configured.
func DefaultDatabasePath() string {
	return ExpandPath("~/.local/share/ledgerlens/ledgerlens.db")
}

// DefaultDictionaryPath is where the category dictionary is looked up unless
// configured. A missing dictionary simply disables the dictionary stage.
func DefaultDictionaryPath() string {
	return ExpandPath("~/.config/ledgerlens/dictionary.yaml")
}
