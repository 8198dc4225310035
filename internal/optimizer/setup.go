package optimizer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/evaluate"
	"github.com/Faultbox/segmata/internal/meshstore"
	"github.com/Faultbox/segmata/internal/notify"
	"github.com/Faultbox/segmata/internal/render"
	"github.com/Faultbox/segmata/internal/selector"
	"github.com/Faultbox/segmata/internal/visual"
	"github.com/Faultbox/segmata/pkg/formats"
)

// FromConfig wires a Controller from resolved run settings. The oracle is
// passed in so callers choose how rendering happens.
func FromConfig(cfg *config.Config, oracle render.Oracle) (*Controller, error) {
	store, err := meshstore.Open(cfg.Mesh.ObjPath)
	if err != nil {
		return nil, config.NewInputError(config.KindMesh, cfg.Mesh.ObjPath, err)
	}

	table, err := formats.LoadProjection(cfg.Mesh.ProjectionPath)
	if err != nil {
		return nil, config.NewInputError(config.KindProjection, cfg.Mesh.ProjectionPath, err)
	}

	strategy, err := selector.ParseStrategy(cfg.Optimizer.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	onFailure, err := ParseFailurePolicy(cfg.Optimizer.OnFailure)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, err
	}

	rng, seed := selector.NewRand(cfg.Optimizer.Seed)
	sel := selector.New(table.Coords(), selector.Options{
		Fraction:         cfg.Optimizer.SampleFraction,
		SeparationFactor: cfg.Optimizer.SeparationFactor,
		Strategy:         strategy,
	})

	ctrl, err := New(Deps{
		Store:      store,
		Projection: table,
		Selector:   sel,
		Oracle:     oracle,
		Evaluator:  evaluate.New(cfg.Optimizer.WindowHalfWidth),
		Artifacts:  visual.NewWriter(cfg.Output.Dir, filepath.Base(cfg.OutputImagePath())),
		Notifier:   notifier,
		Rand:       rng,
		Seed:       seed,
	}, Options{
		StepDistance: cfg.Optimizer.StepDistance,
		Rereference:  cfg.Optimizer.Rereference,
		NotifyEvery:  cfg.Notify.Every,
		OnFailure:    onFailure,
	})
	if errors.Is(err, ErrProjectionMismatch) {
		return nil, config.NewInputError(config.KindProjection, cfg.Mesh.ProjectionPath, err)
	}
	if err != nil {
		return nil, config.NewInputError(config.KindMesh, cfg.Mesh.ObjPath, err)
	}
	return ctrl, nil
}

// Artifacts returns the writer that holds the run's image outputs.
func (c *Controller) Artifacts() *visual.Writer {
	return c.artifacts
}
