package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration file format:
//
//	host: 192.168.1.40
//	model: AC4236
//	port: 5683
type fileConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
	Port  int    `yaml:"port"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// override applies non-empty flag values on top of the file values.
func (c *fileConfig) override(host, model string) {
	if host != "" {
		c.Host = host
	}
	if model != "" {
		c.Model = model
	}
}

func (c *fileConfig) validate() error {
	if c.Host == "" {
		return errors.New("no host given (use -host or a config file)")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	return nil
}
