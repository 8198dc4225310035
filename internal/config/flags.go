package config

import "flag"

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagObj         = flag.String("obj", "", "Path to the OBJ surface to refine")
	flagRenderer    = flag.String("renderer", "", "Path to the render executable")
	flagPasses      = flag.Int("passes", 0, "Number of optimization passes")
	flagDisplay     = flag.Bool("display", false, "Write comparison image and displacement plot at the end")
	flagSeed        = flag.Int64("seed", 0, "Random seed for candidate sampling (0 = clock)")
	flagStrategy    = flag.String("strategy", "", "Declustering strategy: grid or exact")
	flagRereference = flag.Bool("rereference", false, "Re-render the reference between directions")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagObj != "" {
		cfg.Mesh.ObjPath = *flagObj
	}
	if *flagRenderer != "" {
		cfg.Render.Executable = *flagRenderer
	}
	if *flagPasses > 0 {
		cfg.Optimizer.Passes = *flagPasses
	}
	if *flagDisplay {
		cfg.Output.DisplayResults = true
	}
	if *flagSeed != 0 {
		cfg.Optimizer.Seed = *flagSeed
	}
	if *flagStrategy != "" {
		cfg.Optimizer.Strategy = *flagStrategy
	}
	if *flagRereference {
		cfg.Optimizer.Rereference = true
	}
}
