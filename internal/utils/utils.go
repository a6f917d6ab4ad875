package utils

import (
	"fmt"
	"os"
	"path/filepath"

	db "github.com/KazanKK/mariadump/database"
	"github.com/KazanKK/mariadump/notify"
	"gopkg.in/yaml.v3"
)

const ConfigFileName = "mariadump.yaml"

// Config is the project configuration file. Every field can be overridden
// by a command flag.
type Config struct {
	OutputDir  string            `yaml:"output_dir"`
	BatchSize  int               `yaml:"batch_size,omitempty"`
	Connection db.ConnParams     `yaml:"connection"`
	SMTP       notify.SMTPConfig `yaml:"smtp,omitempty"`
}

// DefaultConfig is what init writes when no flags are given.
func DefaultConfig() Config {
	return Config{
		OutputDir: "exports",
		BatchSize: 5000,
		Connection: db.ConnParams{
			Host: "localhost",
			Port: db.DefaultPort,
		},
		SMTP: notify.SMTPConfig{Port: notify.DefaultSMTPPort},
	}
}

// FindConfigFile tries to find the config file in the current directory
// or any parent directory, falling back to the global config if needed
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root directory
		}
		dir = parent
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	globalConfig := filepath.Join(homeDir, ".mariadump", "config.yaml")
	if _, err := os.Stat(globalConfig); err == nil {
		return globalConfig, nil
	}

	return "", fmt.Errorf("no config file found in project or ~/.mariadump/config.yaml")
}

// ReadConfig parses a config file. Relative output directories are resolved
// against the file's directory.
func ReadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.OutputDir != "" && !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(filepath.Dir(configPath), cfg.OutputDir)
	}
	return cfg, nil
}

// LoadConfig reads the nearest config file, or returns the defaults when
// there is none.
func LoadConfig() (Config, string, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return DefaultConfig(), "", nil
	}
	cfg, err := ReadConfig(configPath)
	return cfg, configPath, err
}

// WriteConfig writes cfg as YAML.
func WriteConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("creating yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
