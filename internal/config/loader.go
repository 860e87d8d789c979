package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stackpilot/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/stackpilot"
	configFileName = "config.yaml"
)

// lookupEnv is a variable to allow mocking in tests
var lookupEnv = os.LookupEnv

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// ConfigFilePath returns the config.yaml location inside configPath.
func ConfigFilePath(configPath string) string {
	return filepath.Join(configPath, configFileName)
}

// LoadConfig loads configuration from a single specified directory.
// Values in config.yaml override the built-in defaults; a list given in the
// file replaces the corresponding default list.
func LoadConfig(configPath string) (StackpilotConfig, error) {
	configFilePath := ConfigFilePath(configPath)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return StackpilotConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: "io",
			Message:   "cannot read configuration file",
			Details:   err.Error(),
			Err:       err,
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return StackpilotConfig{}, newParseError(configFilePath, configFileName, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	applyDefaults(&config)
	if pw, ok := lookupEnv(DatabasePasswordEnv); ok && pw != "" {
		config.Database.Password = pw
	}

	if err := config.Validate(); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return StackpilotConfig{}, newValidationError(configFilePath, configFileName, verrs)
		}
		return StackpilotConfig{}, err
	}
	return config, nil
}

// applyDefaults fills zero values a partial config.yaml may have cleared.
func applyDefaults(c *StackpilotConfig) {
	if c.Bootstrap.StepTimeout == 0 {
		c.Bootstrap.StepTimeout = Duration(DefaultStepTimeout)
	}
	if c.Readiness.Timeout == 0 {
		c.Readiness.Timeout = Duration(DefaultReadinessTimeout)
	}
	if c.Readiness.Interval == 0 {
		c.Readiness.Interval = Duration(DefaultReadinessInterval)
	}
	if c.UI.URL == "" {
		c.UI.URL = DefaultUIURL
	}
	if c.Database.Password == "" {
		c.Database.Password = DefaultDatabasePassword
	}
}

// UsesDefaultDatabasePassword reports whether the shipped password is in use.
func (c StackpilotConfig) UsesDefaultDatabasePassword() bool {
	return c.Database.Password == DefaultDatabasePassword
}
