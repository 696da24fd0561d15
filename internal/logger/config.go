package logger

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level" env:"LEVEL"`
	ConsoleEnabled bool   `yaml:"console_enabled" env:"CONSOLE_ENABLED"`
	ConsoleFormat  string `yaml:"console_format" env:"FORMAT"`
	// ConsoleOutput is "stderr" or "stdout". Command output goes to stdout,
	// so logs default to stderr.
	ConsoleOutput  string `yaml:"console_output" env:"CONSOLE_OUTPUT"`
	FileEnabled    bool   `yaml:"file_enabled" env:"FILE_ENABLED"`
	FilePath       string `yaml:"file_path" env:"FILE_PATH"`
	FileFormat     string `yaml:"file_format" env:"FILE_FORMAT"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb" env:"FILE_MAX_SIZE_MB"`
	FileMaxBackups int    `yaml:"file_max_backups" env:"FILE_MAX_BACKUPS"`
	FileMaxAgeDays int    `yaml:"file_max_age_days" env:"FILE_MAX_AGE_DAYS"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig logs INFO as text to stderr with file output off.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		ConsoleOutput:  "stderr",
		FilePath:       "logs/simulator.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig reads the logging section of a YAML file over the defaults
// and then applies SIM_LOG_* environment overrides. A missing or unreadable
// file keeps the defaults; a malformed one is reported along with them.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	var parseErr error
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			wrapped := LoggingConfig{Logging: config}
			if err := yaml.Unmarshal(data, &wrapped); err != nil {
				parseErr = fmt.Errorf("failed to parse logging config: %w", err)
			} else {
				config = wrapped.Logging
			}
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: "SIM_LOG_"}); err != nil {
		return config, fmt.Errorf("failed to apply logging environment: %w", err)
	}

	return config, parseErr
}
