// Package main is the entry point for the segmata mesh optimizer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/logger"
	"github.com/Faultbox/segmata/internal/meshstore"
	"github.com/Faultbox/segmata/internal/optimizer"
	"github.com/Faultbox/segmata/internal/render"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted; mesh holds the last committed pass")
		logger.Sync()
		os.Exit(130)
	default:
		fail(err)
	}
}

// run performs one optimization run. Nothing is written next to the mesh
// until the mesh itself has been found.
func run(ctx context.Context, cfg *config.Config) error {
	if _, err := meshstore.Open(cfg.Mesh.ObjPath); err != nil {
		return config.NewInputError(config.KindMesh, cfg.Mesh.ObjPath, err)
	}

	// Initialize logger; the run log is truncated at start
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("=== Segmata ===")
	logger.Sugar.Debugf("Config: %+v", cfg.Redacted())

	if err := cfg.ApplyDescriptor(); err != nil {
		return fmt.Errorf("reading run descriptor: %w", err)
	}

	oracle, err := render.NewExecOracle(cfg.Render)
	if err != nil {
		return fmt.Errorf("configuring renderer: %w", err)
	}

	ctrl, err := optimizer.FromConfig(cfg, oracle)
	if err != nil {
		return fmt.Errorf("preparing run: %w", err)
	}

	if err := cfg.SaveTo(filepath.Join(cfg.Output.Dir, "segmata_run.yaml")); err != nil {
		logger.Warn("could not save effective config", zap.Error(err))
	}

	start := time.Now()
	report, runErr := ctrl.Run(ctx, cfg.Optimizer.Passes)

	if cfg.Output.DisplayResults && len(report.Passes) > 0 {
		if err := ctrl.Artifacts().Visualize(report); err != nil {
			logger.Warn("could not write result images", zap.Error(err))
		}
	}

	logger.Banner("OPTIMIZATION END", fmt.Sprintf("elapsed %s", time.Since(start).Round(time.Second)))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("optimization aborted: %w", runErr)
	}
	return runErr
}

func fail(err error) {
	var inErr *config.InputError
	if errors.As(err, &inErr) {
		logger.Error("run failed", zap.String("input", string(inErr.Kind)), zap.String("path", inErr.Path), zap.Error(inErr.Err))
	} else {
		logger.Error("run failed", zap.Error(err))
	}
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
