package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes a Config to a YAML file.
// It performs an atomic write by writing to a temporary file first,
// then renaming it to the target path.
func SaveConfig(cfg *Config, path string) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a new Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Default returns the configuration used when no config file exists.
// It is NewDefaultConfig, validated.
func Default() (*Config, error) {
	cfg := NewDefaultConfig()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AddAgent appends a notification agent to an existing config file,
// creating the file with defaults when it doesn't exist.
func AddAgent(configPath string, agent Agent) error {
	var cfg *Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
	} else {
		cfg = NewDefaultConfig()
	}

	for _, existing := range cfg.Notifications.Agents {
		if existing.Agent == agent.Agent {
			return fmt.Errorf("agent '%s' is already configured", agent.Agent)
		}
	}
	cfg.Notifications.Agents = append(cfg.Notifications.Agents, agent)

	if err := SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
