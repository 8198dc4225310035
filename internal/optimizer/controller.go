// Package optimizer runs the render-feedback refinement loop: each pass
// nudges a declustered sample of vertices along their normals, renders the
// result, and commits only the moves that brightened their neighbourhood.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Faultbox/segmata/internal/evaluate"
	"github.com/Faultbox/segmata/internal/logger"
	"github.com/Faultbox/segmata/internal/meshstore"
	"github.com/Faultbox/segmata/internal/notify"
	"github.com/Faultbox/segmata/internal/render"
	"github.com/Faultbox/segmata/internal/report"
	"github.com/Faultbox/segmata/internal/selector"
	"github.com/Faultbox/segmata/internal/visual"
	"github.com/Faultbox/segmata/pkg/formats"
)

// ErrProjectionMismatch is returned when the projection table and the mesh
// disagree on the number of vertices.
var ErrProjectionMismatch = errors.New("projection table does not match mesh")

// Directions are tried in this order within a pass. The +1 trial is built
// from the mesh as committed by the -1 trial.
var Directions = [2]int{-1, +1}

// FailurePolicy decides what Run does after a failed pass.
type FailurePolicy int

const (
	// SkipFailed logs the failed pass and continues with the next one.
	SkipFailed FailurePolicy = iota
	// AbortOnFailure stops the run at the first failed pass.
	AbortOnFailure
)

// ParseFailurePolicy maps a config name to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch name {
	case "skip", "":
		return SkipFailed, nil
	case "abort":
		return AbortOnFailure, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q", name)
	}
}

// Options tunes the pass loop.
type Options struct {
	StepDistance float64 // displacement magnitude along the normal
	Rereference  bool    // re-render the reference between directions
	NotifyEvery  int     // notify on passes divisible by this; 0 disables
	OnFailure    FailurePolicy
}

// DefaultOptions returns the standard loop settings.
func DefaultOptions() Options {
	return Options{
		StepDistance: 2,
		NotifyEvery:  100,
		OnFailure:    SkipFailed,
	}
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("missing controller dependency")

// Deps are the collaborators a Controller drives. Every field except
// Notifier and Seed is required.
type Deps struct {
	Store      *meshstore.Store
	Projection *formats.ProjectionTable
	Selector   *selector.Selector
	Oracle     render.Oracle
	Evaluator  *evaluate.Evaluator
	Artifacts  *visual.Writer
	Notifier   report.Notifier // nil disables notification
	Rand       *rand.Rand
	Seed       int64 // recorded in the report
}

func (d *Deps) check() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingDependency, name)
	}
	switch {
	case d.Store == nil:
		return missing("store")
	case d.Projection == nil:
		return missing("projection")
	case d.Selector == nil:
		return missing("selector")
	case d.Oracle == nil:
		return missing("oracle")
	case d.Evaluator == nil:
		return missing("evaluator")
	case d.Artifacts == nil:
		return missing("artifacts")
	case d.Rand == nil:
		return missing("rand")
	}
	return nil
}

// Controller owns one optimization run. It is not safe for concurrent use:
// passes and directions run strictly in sequence.
type Controller struct {
	store     *meshstore.Store
	uvs       []r2.Vec
	selector  *selector.Selector
	oracle    render.Oracle
	evaluator *evaluate.Evaluator
	artifacts *visual.Writer
	notifier  report.Notifier
	rng       *rand.Rand
	opts      Options
	report    *report.Report
	log       *zap.Logger
}

// New validates the inputs against each other and returns a Controller.
func New(deps Deps, opts Options) (*Controller, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}
	mesh, err := deps.Store.Load()
	if err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if mesh.VertexCount() != deps.Projection.Len() {
		return nil, fmt.Errorf("%w: %d vertices, %d rows",
			ErrProjectionMismatch, mesh.VertexCount(), deps.Projection.Len())
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	name := strings.TrimSuffix(filepath.Base(deps.Store.Path()), filepath.Ext(deps.Store.Path()))

	return &Controller{
		store:     deps.Store,
		uvs:       deps.Projection.Coords(),
		selector:  deps.Selector,
		oracle:    deps.Oracle,
		evaluator: deps.Evaluator,
		artifacts: deps.Artifacts,
		notifier:  notifier,
		rng:       deps.Rand,
		opts:      opts,
		report:    report.New(name, mesh.VertexCount(), deps.Seed),
		log:       logger.Named("optimizer"),
	}, nil
}

// Report returns the results collected so far.
func (c *Controller) Report() *report.Report {
	return c.report
}

// Run executes passes 0..passes-1 in order. There is no early stop: every
// pass runs even when earlier ones accepted nothing. The partial report is
// returned alongside any error.
func (c *Controller) Run(ctx context.Context, passes int) (*report.Report, error) {
	logger.Banner("OPTIMIZATION START")
	c.log.Info("run parameters",
		zap.String("mesh", c.store.Path()),
		zap.Int("vertices", c.report.VertexCount),
		zap.Int("passes", passes),
		zap.Int64("seed", c.report.Seed),
		zap.Float64("step", c.opts.StepDistance),
		zap.Float64("separation", c.selector.Separation()),
		zap.Stringer("strategy", c.selector.Strategy()),
		zap.Bool("rereference", c.opts.Rereference))

	for pass := 0; pass < passes; pass++ {
		if err := ctx.Err(); err != nil {
			return c.report, err
		}

		c.log.Info(fmt.Sprintf("PASS %d", pass+1))
		res := c.RunPass(ctx, pass)
		if !res.Failed() {
			continue
		}
		if ctx.Err() != nil {
			return c.report, ctx.Err()
		}
		if c.opts.OnFailure == AbortOnFailure {
			return c.report, fmt.Errorf("pass %d: %w", pass+1, res.Err)
		}
		c.log.Warn("skipping failed pass", zap.Int("pass", pass+1), zap.Error(res.Err))
	}

	c.report.Log(c.log)
	return c.report, nil
}

// RunPass runs one pass and records its result in the report.
//
// The pass renders the committed mesh once as its reference, selects one
// candidate set, then tries direction -1 and direction +1 in that order.
// Each direction reloads the committed mesh, so +1 trials start from the
// mesh as -1 left it. Unless Rereference is set, both directions are scored
// against the reference taken at pass start.
//
// Any render, scoring or commit error ends the pass with Err set. Directions
// that committed before the error stay committed.
func (c *Controller) RunPass(ctx context.Context, pass int) report.PassResult {
	start := time.Now()
	res := report.PassResult{Pass: pass, VertexCount: c.report.VertexCount}

	res.Err = c.runPass(ctx, pass, &res)
	res.Duration = time.Since(start)

	c.report.Add(res)
	report.LogPass(c.log, &res)
	c.maybeNotify(ctx, pass)
	return res
}

func (c *Controller) runPass(ctx context.Context, pass int, res *report.PassResult) error {
	if err := c.store.Backup(); err != nil {
		return fmt.Errorf("backing up mesh: %w", err)
	}

	ref, err := c.renderCommitted(ctx, pass)
	if err != nil {
		return fmt.Errorf("rendering reference: %w", err)
	}
	c.saveArtifact(ref, c.artifacts.ReferencePath())
	if pass == 0 {
		c.saveArtifact(ref, c.artifacts.OriginalPath())
	}

	res.Candidates = c.selector.Select(c.rng)
	c.log.Debug("candidates selected", zap.Int("count", len(res.Candidates)))

	for i, dir := range Directions {
		dr, moves, err := c.runDirection(ctx, pass, dir, res.Candidates, ref)
		if err != nil {
			return fmt.Errorf("direction %+d: %w", dir, err)
		}
		res.Directions = append(res.Directions, dr)
		res.Moves = append(res.Moves, moves...)

		if c.opts.Rereference && dr.Accepted > 0 && i < len(Directions)-1 {
			if ref, err = c.renderCommitted(ctx, pass); err != nil {
				return fmt.Errorf("rendering new reference: %w", err)
			}
			c.saveArtifact(ref, c.artifacts.ReferencePath())
		}
	}

	final := ref
	if len(res.Moves) > 0 {
		img, err := c.renderCommitted(ctx, pass)
		if err != nil {
			return fmt.Errorf("rendering committed mesh: %w", err)
		}
		final = img
	}
	c.saveArtifact(final, c.artifacts.PassPath(pass))
	return nil
}

// runDirection tries every candidate displaced by dir*step in one render and
// commits the accepted subset.
func (c *Controller) runDirection(ctx context.Context, pass, dir int, candidates []int, ref image.Image) (report.DirectionResult, []report.Move, error) {
	dr := report.DirectionResult{Direction: dir}
	distance := float64(dir) * c.opts.StepDistance

	mesh, err := c.store.Load()
	if err != nil {
		return dr, nil, err
	}
	trial, err := mesh.Displaced(candidates, distance)
	if err != nil {
		return dr, nil, err
	}
	img, err := c.renderTrial(ctx, trial, pass, dir)
	if err != nil {
		return dr, nil, err
	}

	scores, err := c.evaluator.Score(img, ref, c.uvs, candidates)
	if err != nil {
		return dr, nil, fmt.Errorf("scoring trial: %w", err)
	}
	for _, s := range scores {
		c.log.Debug("vertex scored",
			zap.Int("vertex", s.Vertex+1),
			zap.Int("direction", dir),
			zap.Float64("diff", s.Mean),
			zap.Bool("accepted", s.Accepted))
	}
	accepted, rejected := evaluate.Partition(scores)
	dr.Accepted, dr.Rejected = len(accepted), len(rejected)
	if len(accepted) == 0 {
		return dr, nil, nil
	}

	// Commit from a fresh read so only accepted moves reach the file.
	committed, err := c.store.Load()
	if err != nil {
		return dr, nil, err
	}
	moved, err := committed.Displaced(accepted, distance)
	if err != nil {
		return dr, nil, err
	}
	if err := c.store.Commit(moved); err != nil {
		return dr, nil, fmt.Errorf("committing mesh: %w", err)
	}

	moves := make([]report.Move, len(accepted))
	for i, v := range accepted {
		moves[i] = report.Move{Pass: pass, Vertex: v, Direction: dir, Displacement: distance}
	}
	return dr, moves, nil
}

// renderCommitted renders the committed mesh through a trial file so the
// committed file is never handed to the renderer.
func (c *Controller) renderCommitted(ctx context.Context, pass int) (image.Image, error) {
	mesh, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	return c.renderTrial(ctx, mesh, pass, 0)
}

func (c *Controller) renderTrial(ctx context.Context, obj *formats.OBJ, pass, dir int) (image.Image, error) {
	path, err := c.store.WriteTrial(obj, pass, dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.store.RemoveTrial(path); err != nil {
			c.log.Warn("removing trial mesh", zap.String("path", path), zap.Error(err))
		}
	}()
	return c.oracle.Render(ctx, path)
}

func (c *Controller) saveArtifact(img image.Image, path string) {
	if err := visual.SaveImage(img, path); err != nil {
		c.log.Warn("saving image", zap.String("path", path), zap.Error(err))
	}
}

func (c *Controller) maybeNotify(ctx context.Context, pass int) {
	if c.opts.NotifyEvery <= 0 || pass == 0 || pass%c.opts.NotifyEvery != 0 {
		return
	}
	if err := c.notifier.Notify(ctx, c.report, c.artifacts.ReferencePath()); err != nil {
		c.log.Warn("notification failed", zap.Int("pass", pass+1), zap.Error(err))
	}
}
