package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`
}

// fileConfig mirrors Config with pointer booleans so that keys missing from
// the YAML keep their defaults.
type fileConfig struct {
	Level          string `yaml:"level"`
	ConsoleEnabled *bool  `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    *bool  `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   *bool  `yaml:"file_compress"`
}

// DefaultConfig returns console-only text logging at INFO
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/tilecollapse.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig loads logging configuration from a YAML file with a top-level
// "logging" key, then applies LOG_* environment overrides. A missing or
// unreadable file leaves the defaults in place.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var wrapper struct {
				Logging fileConfig `yaml:"logging"`
			}
			if err := yaml.Unmarshal(data, &wrapper); err == nil {
				config.merge(wrapper.Logging)
			}
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) merge(f fileConfig) {
	if f.Level != "" {
		c.Level = f.Level
	}
	if f.ConsoleEnabled != nil {
		c.ConsoleEnabled = *f.ConsoleEnabled
	}
	if f.ConsoleFormat != "" {
		c.ConsoleFormat = f.ConsoleFormat
	}
	if f.FileEnabled != nil {
		c.FileEnabled = *f.FileEnabled
	}
	if f.FilePath != "" {
		c.FilePath = f.FilePath
	}
	if f.FileFormat != "" {
		c.FileFormat = f.FileFormat
	}
	if f.FileMaxSizeMB > 0 {
		c.FileMaxSizeMB = f.FileMaxSizeMB
	}
	if f.FileMaxBackups > 0 {
		c.FileMaxBackups = f.FileMaxBackups
	}
	if f.FileMaxAgeDays > 0 {
		c.FileMaxAgeDays = f.FileMaxAgeDays
	}
	if f.FileCompress != nil {
		c.FileCompress = *f.FileCompress
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("LOG_CONSOLE_FORMAT"); v != "" {
		c.ConsoleFormat = v
	}
	if v := os.Getenv("LOG_FILE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.FileEnabled = enabled
		}
	}
	if v := os.Getenv("LOG_FILE_PATH"); v != "" {
		c.FilePath = v
	}
	if v := os.Getenv("LOG_FILE_FORMAT"); v != "" {
		c.FileFormat = v
	}
}
