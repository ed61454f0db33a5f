// Package fs locates the console's files under the XDG base directories.
package fs

import (
	"os"
	"path/filepath"
)

const appName = "triage"

// DefaultConfigDir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise falls back to ~/.config/triage,
// or the system temp directory if home is unavailable.
func DefaultConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultStateDir returns the directory for logs and other state.
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state/triage.
func DefaultStateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// DefaultConfigPath returns the path of the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultLogPath returns the log file used while the terminal UI runs.
func DefaultLogPath() string {
	return filepath.Join(DefaultStateDir(), appName+".log")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, fallback, appName)
}
