package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Redacted returns a copy of the config that is safe to log or persist: the
// SMTP password is masked.
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.Notify.Password != "" {
		redacted.Notify.Password = "<redacted>"
	}
	return &redacted
}

// SaveTo writes the config to a specific path, omitting the SMTP password.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
