// Package config handles run configuration loading and management.
package config

import "time"

// Config holds all run settings.
type Config struct {
	Mesh      MeshConfig      `yaml:"mesh"`
	Render    RenderConfig    `yaml:"render"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Output    OutputConfig    `yaml:"output"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MeshConfig holds the input file paths.
// Empty side-file paths are derived from ObjPath by Resolve.
type MeshConfig struct {
	ObjPath        string `yaml:"obj_path"`
	ProjectionPath string `yaml:"projection_path"` // default <dir>/<base>_uv.csv
	DescriptorPath string `yaml:"descriptor_path"` // default <dir>/meta.json
}

// RenderConfig holds the render oracle invocation settings.
type RenderConfig struct {
	Executable string        `yaml:"executable"`
	Version    string        `yaml:"version"`
	Layer      int           `yaml:"layer"`
	Format     string        `yaml:"format"`
	DataDir    string        `yaml:"data_dir"`
	TargetDir  string        `yaml:"target_dir"`
	Width      int           `yaml:"width"`  // 0 = from run descriptor
	Height     int           `yaml:"height"` // 0 = from run descriptor
	Timeout    time.Duration `yaml:"timeout"`
	ExtraArgs  string        `yaml:"extra_args"`
}

// OptimizerConfig holds the pass loop settings.
type OptimizerConfig struct {
	Passes           int     `yaml:"passes"`
	StepDistance     float64 `yaml:"step_distance"`
	SampleFraction   float64 `yaml:"sample_fraction"`
	SeparationFactor float64 `yaml:"separation_factor"`
	WindowHalfWidth  int     `yaml:"window_half_width"`
	Strategy         string  `yaml:"strategy"` // grid or exact
	Seed             int64   `yaml:"seed"`     // 0 = seeded from the clock
	Rereference      bool    `yaml:"rereference"`
	OnFailure        string  `yaml:"on_failure"` // skip or abort
}

// OutputConfig holds result artifact settings.
type OutputConfig struct {
	Dir            string `yaml:"dir"` // default: mesh directory
	DisplayResults bool   `yaml:"display_results"`
}

// NotifyConfig holds e-mail progress notification settings.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Every    int      `yaml:"every"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"` // default <dir>/segmata_log.txt
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Version: "20241024131838",
			Layer:   32,
			Format:  "jpg",
			Timeout: 10 * time.Minute,
		},
		Optimizer: OptimizerConfig{
			Passes:           3,
			StepDistance:     2,
			SampleFraction:   0.2,
			SeparationFactor: 5,
			WindowHalfWidth:  25,
			Strategy:         "grid",
			OnFailure:        "skip",
		},
		Notify: NotifyConfig{
			Every:    100,
			SMTPPort: 587,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
