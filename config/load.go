package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/aphelion-labs/meteorid/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the meteorid configuration using Viper. The result is cached;
// call Reset in tests that need a clean slate.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path, bypassing the
// search path. Defaults still apply underneath.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "unmarshal config from %s", configPath)
	}
	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Environment overrides: METEORID_SERVER_PORT, METEORID_SOURCE_URL, ...
	v.SetEnvPrefix("METEORID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Merge files lowest to highest precedence: user config, then project
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// mergeConfigFiles merges the user config (~/.meteorid/config.toml) and the
// nearest project meteorid.toml found walking up from the working directory.
func mergeConfigFiles(v *viper.Viper) {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".meteorid", "config.toml")
		if _, err := os.Stat(userPath); err == nil {
			mergeFile(v, userPath)
		}
	}

	if projectPath := findProjectConfig(); projectPath != "" {
		mergeFile(v, projectPath)
	}
}

func mergeFile(v *viper.Viper, path string) {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	// Merge errors are deliberately non-fatal: a broken config file falls
	// back to defaults plus whatever merged before it
	_ = v.MergeInConfig()
}

// findProjectConfig searches for meteorid.toml by walking up the directory
// tree. Returns the first hit, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "meteorid.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
