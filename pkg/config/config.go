package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DataDir      string `yaml:"data_dir"`
	SaveOnCommit bool   `yaml:"save_on_commit"`
	Debug        bool   `yaml:"debug"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		DataDir:      "./data",
		SaveOnCommit: true,
	}
}

// LoadYAMLFile merges a YAML config file over the receiver. A missing file
// is only an error when the path was explicitly required.
func (c *Config) LoadYAMLFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Check validates the configuration.
func (c *Config) Check() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	return nil
}
