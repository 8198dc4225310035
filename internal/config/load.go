package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags, then
// resolves derived paths.
func Load() (*Config, error) {
	cfg := Default()

	// Explicit path takes priority
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, NewInputError(KindConfig, configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./segmata.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Segmata")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Segmata")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "segmata")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "segmata")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Resolve expands home-relative paths, derives the side-file and output
// locations from the mesh path and checks the values the run depends on.
func (c *Config) Resolve() error {
	if c.Mesh.ObjPath == "" {
		return fmt.Errorf("%w: no OBJ file given (use -obj or mesh.obj_path)", ErrInvalid)
	}

	paths := []*string{
		&c.Mesh.ObjPath, &c.Mesh.ProjectionPath, &c.Mesh.DescriptorPath,
		&c.Render.Executable, &c.Render.DataDir, &c.Render.TargetDir,
		&c.Output.Dir, &c.Logging.LogFile,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%w: expanding %q: %v", ErrInvalid, *p, err)
		}
		*p = expanded
	}

	dir := filepath.Dir(c.Mesh.ObjPath)
	base := c.MeshBaseName()

	if c.Mesh.ProjectionPath == "" {
		c.Mesh.ProjectionPath = filepath.Join(dir, base+"_uv.csv")
	}
	if c.Mesh.DescriptorPath == "" {
		c.Mesh.DescriptorPath = filepath.Join(dir, "meta.json")
	}
	if c.Render.TargetDir == "" {
		c.Render.TargetDir = dir
	}
	if c.Output.Dir == "" {
		c.Output.Dir = dir
	}
	if c.Logging.LogFile == "" {
		c.Logging.LogFile = filepath.Join(dir, "segmata_log.txt")
	}
	c.Render.Format = strings.ToLower(strings.TrimPrefix(c.Render.Format, "."))

	return c.validate()
}

func (c *Config) validate() error {
	o := c.Optimizer
	switch {
	case c.Render.Executable == "":
		return fmt.Errorf("%w: no renderer given (use -renderer or render.executable)", ErrInvalid)
	case c.Render.Format == "":
		return fmt.Errorf("%w: render.format is empty", ErrInvalid)
	case c.Render.Timeout < 0:
		return fmt.Errorf("%w: render.timeout must not be negative", ErrInvalid)
	case o.Passes < 0:
		return fmt.Errorf("%w: optimizer.passes must not be negative", ErrInvalid)
	case o.StepDistance <= 0:
		return fmt.Errorf("%w: optimizer.step_distance must be positive", ErrInvalid)
	case o.SampleFraction <= 0 || o.SampleFraction > 1:
		return fmt.Errorf("%w: optimizer.sample_fraction must be in (0, 1]", ErrInvalid)
	case o.SeparationFactor < 0:
		return fmt.Errorf("%w: optimizer.separation_factor must not be negative", ErrInvalid)
	case o.WindowHalfWidth < 0:
		return fmt.Errorf("%w: optimizer.window_half_width must not be negative", ErrInvalid)
	case o.Strategy != "grid" && o.Strategy != "exact":
		return fmt.Errorf("%w: optimizer.strategy %q (want grid or exact)", ErrInvalid, o.Strategy)
	case o.OnFailure != "skip" && o.OnFailure != "abort":
		return fmt.Errorf("%w: optimizer.on_failure %q (want skip or abort)", ErrInvalid, o.OnFailure)
	case c.Notify.Enabled && c.Notify.SMTPHost == "":
		return fmt.Errorf("%w: notify.smtp_host is required when notifications are enabled", ErrInvalid)
	case c.Notify.Enabled && len(c.Notify.To) == 0:
		return fmt.Errorf("%w: notify.to is empty", ErrInvalid)
	}
	return nil
}

// MeshBaseName returns the OBJ file name without directory and extension.
// The run descriptor is keyed by this name.
func (c *Config) MeshBaseName() string {
	base := filepath.Base(c.Mesh.ObjPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputImagePath returns where the renderer writes its image.
func (c *Config) OutputImagePath() string {
	return filepath.Join(c.Render.TargetDir, fmt.Sprintf("%d.%s", c.Render.Layer, c.Render.Format))
}
