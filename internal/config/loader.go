package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cmarkh/audible-api/pkg/logging"
)

const (
	userConfigDir  = ".config/audible"
	configFileName = "config.yaml"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

// Dir returns the user configuration directory.
func Dir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// DefaultPath returns the path of the default config file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func defaultSessionPath() string {
	dir, err := Dir()
	if err != nil {
		return sessionFileName
	}
	return filepath.Join(dir, sessionFileName)
}

// Load reads the config file at path on top of the defaults. An empty path
// selects DefaultPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	config := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", path)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}

	config.SessionPath, err = ExpandHome(config.SessionPath)
	if err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not expand %s: %w", path, err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}
