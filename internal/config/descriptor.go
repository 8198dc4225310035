package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor errors.
var (
	ErrDescriptorEntry = errors.New("no descriptor entry for mesh")
	ErrDescriptorSize  = errors.New("descriptor size must be positive")
)

// Descriptor is the per-mesh entry of the run descriptor side file.
type Descriptor struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LoadDescriptor reads the run descriptor at path and returns the entry
// keyed by meshName. The file is a JSON or YAML mapping of mesh base names
// to {width, height}; JSON parses as YAML flow style.
func LoadDescriptor(path, meshName string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, NewInputError(KindDescriptor, path, err)
	}

	var entries map[string]Descriptor
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return Descriptor{}, NewInputError(KindDescriptor, path, err)
	}

	d, ok := entries[meshName]
	if !ok {
		return Descriptor{}, NewInputError(KindDescriptor, path, fmt.Errorf("%w %q", ErrDescriptorEntry, meshName))
	}
	if d.Width <= 0 || d.Height <= 0 {
		return Descriptor{}, NewInputError(KindDescriptor, path, fmt.Errorf("%w: %dx%d", ErrDescriptorSize, d.Width, d.Height))
	}
	return d, nil
}

// ApplyDescriptor fills the render size from the run descriptor unless the
// config already sets it.
func (c *Config) ApplyDescriptor() error {
	if c.Render.Width > 0 && c.Render.Height > 0 {
		return nil
	}
	d, err := LoadDescriptor(c.Mesh.DescriptorPath, c.MeshBaseName())
	if err != nil {
		return err
	}
	if c.Render.Width <= 0 {
		c.Render.Width = d.Width
	}
	if c.Render.Height <= 0 {
		c.Render.Height = d.Height
	}
	return nil
}
