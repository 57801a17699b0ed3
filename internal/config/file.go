package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefaultsFromFile reads a global default ScopedConfiguration document
// from disk (TRIBRID_CONFIG_PATH), starting from Defaults() so an operator
// only needs to specify the fields they want to override. A missing path is
// not an error — callers fall back to Defaults() directly.
func LoadDefaultsFromFile(path string) (ScopedConfiguration, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ScopedConfiguration{}, fmt.Errorf("read config defaults file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ScopedConfiguration{}, fmt.Errorf("parse config defaults file: %w", err)
	}
	return cfg, nil
}
