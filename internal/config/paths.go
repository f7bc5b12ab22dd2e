package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/errors"
)

// GlobalConfigDir returns the path to the global cadence directory.
// This is typically ~/.cadence on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.CadenceHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
func ProjectConfigDir() string {
	return constants.CadenceHome
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .cadence/config.yaml relative to the project root.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}

// HomeDir resolves the directory that holds .cadence. Storage.Home wins when
// set, otherwise the user's home directory is used.
func (c *Config) HomeDir() (string, error) {
	if c.Storage.Home != "" {
		return c.Storage.Home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return home, nil
}

// CadenceDir returns the .cadence directory that holds flows, logs and the journal.
func (c *Config) CadenceDir() (string, error) {
	home, err := c.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.CadenceHome), nil
}

// JournalPath returns the journal database path.
func (c *Config) JournalPath() (string, error) {
	dir, err := c.CadenceDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.JournalFile), nil
}

// LogPath returns the CLI log file path.
func (c *Config) LogPath() (string, error) {
	dir, err := c.CadenceDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LogsDir, constants.CLILogFileName), nil
}
