// Package report collects per-pass results of an optimization run and
// defines the hooks that publish them.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Move is one committed vertex displacement.
type Move struct {
	Pass         int
	Vertex       int
	Direction    int     // -1 or +1
	Displacement float64 // signed distance along the vertex normal
}

// DirectionResult counts one direction's trial within a pass.
type DirectionResult struct {
	Direction int
	Accepted  int
	Rejected  int
}

// PassResult is the outcome of one pass. A pass with a non-nil Err is
// failed; its counts cover only the directions that completed.
type PassResult struct {
	Pass        int
	VertexCount int
	Candidates  []int
	Directions  []DirectionResult
	Moves       []Move
	Err         error
	Duration    time.Duration
}

// Failed reports whether the pass ended with an error.
func (p *PassResult) Failed() bool {
	return p.Err != nil
}

// Accepted returns the number of accepted trials over both directions. A
// vertex accepted in both directions counts twice.
func (p *PassResult) Accepted() int {
	var n int
	for _, d := range p.Directions {
		n += d.Accepted
	}
	return n
}

// Moved returns the number of distinct vertices the pass moved.
func (p *PassResult) Moved() int {
	seen := make(map[int]struct{}, len(p.Moves))
	for _, m := range p.Moves {
		seen[m.Vertex] = struct{}{}
	}
	return len(seen)
}

// MovedPercent returns moved vertices as a percentage of all vertices.
func (p *PassResult) MovedPercent() float64 {
	return pct(p.Moved(), p.VertexCount)
}

// Notifier publishes run progress, typically with the latest reference
// image attached.
type Notifier interface {
	Notify(ctx context.Context, r *Report, attachment string) error
}

// Visualizer renders a report for a human.
type Visualizer interface {
	Visualize(r *Report) error
}

// Report accumulates pass results in order.
type Report struct {
	MeshName    string
	VertexCount int
	Seed        int64
	Passes      []PassResult
}

// New returns an empty report.
func New(meshName string, vertexCount int, seed int64) *Report {
	return &Report{MeshName: meshName, VertexCount: vertexCount, Seed: seed}
}

// Add appends a pass result.
func (r *Report) Add(p PassResult) {
	r.Passes = append(r.Passes, p)
}

// Last returns the most recent pass, or nil.
func (r *Report) Last() *PassResult {
	if len(r.Passes) == 0 {
		return nil
	}
	return &r.Passes[len(r.Passes)-1]
}

// Moves returns every committed move in commit order.
func (r *Report) Moves() []Move {
	var moves []Move
	for _, p := range r.Passes {
		moves = append(moves, p.Moves...)
	}
	return moves
}

// Cumulative returns the net displacement of every vertex that moved.
func (r *Report) Cumulative() map[int]float64 {
	net := make(map[int]float64)
	for _, m := range r.Moves() {
		net[m.Vertex] += m.Displacement
	}
	return net
}

// Stats summarises accepted counts over completed passes.
type Stats struct {
	Passes         int
	Failed         int
	TotalMoves     int
	VerticesMoved  int
	MeanAccepted   float64
	StdDevAccepted float64
	MedianAccepted float64
	MinAccepted    float64
	MaxAccepted    float64
	AcceptanceRate float64 // accepted / candidate trials, over completed passes
	Displacement   Distribution
}

// Distribution describes the net displacement of the vertices that moved.
// StdDev is the population standard deviation.
type Distribution struct {
	Mean, StdDev    float64
	Min, Q1, Median float64
	Q3, Max         float64
}

// Describe computes the distribution of x. x is not modified.
func Describe(x []float64) Distribution {
	if len(x) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	mean, variance := stat.PopMeanVariance(sorted, nil)
	return Distribution{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

// Summary computes run statistics. Failed passes are counted but excluded
// from the accepted-count statistics.
func (r *Report) Summary() Stats {
	s := Stats{Passes: len(r.Passes)}

	var accepted []float64
	var trials int
	for i := range r.Passes {
		p := &r.Passes[i]
		s.TotalMoves += len(p.Moves)
		if p.Failed() {
			s.Failed++
			continue
		}
		accepted = append(accepted, float64(p.Accepted()))
		trials += len(p.Candidates) * len(p.Directions)
	}
	net := r.Cumulative()
	s.VerticesMoved = len(net)
	displacements := make([]float64, 0, len(net))
	for _, d := range net {
		displacements = append(displacements, d)
	}
	s.Displacement = Describe(displacements)

	if len(accepted) == 0 {
		return s
	}
	s.MeanAccepted, s.StdDevAccepted = stat.MeanStdDev(accepted, nil)
	if len(accepted) == 1 {
		s.StdDevAccepted = 0
	}
	s.MinAccepted = floats.Min(accepted)
	s.MaxAccepted = floats.Max(accepted)

	sort.Float64s(accepted)
	s.MedianAccepted = stat.Quantile(0.5, stat.Empirical, accepted, nil)
	if trials > 0 {
		s.AcceptanceRate = floats.Sum(accepted) / float64(trials)
	}
	return s
}

// LogPass writes the summary block of one pass.
func LogPass(log *zap.Logger, p *PassResult) {
	if p.Failed() {
		log.Error(fmt.Sprintf("OPTIMIZATION PASS %d FAILED", p.Pass+1),
			zap.Int("candidates", len(p.Candidates)),
			zap.Duration("elapsed", p.Duration),
			zap.Error(p.Err))
		return
	}
	log.Info(fmt.Sprintf("OPTIMIZATION PASS %d DONE", p.Pass+1),
		zap.Int("candidates", len(p.Candidates)),
		zap.Duration("elapsed", p.Duration))
	for _, d := range p.Directions {
		log.Info(fmt.Sprintf("direction %+d: moved %d of %d vertices (%.2f %%)",
			d.Direction, d.Accepted, p.VertexCount, pct(d.Accepted, p.VertexCount)))
	}
	log.Info(fmt.Sprintf("moved %d of %d vertices (%.2f %%)", p.Moved(), p.VertexCount, p.MovedPercent()))
}

// Log writes the run summary.
func (r *Report) Log(log *zap.Logger) {
	s := r.Summary()
	log.Info("optimization finished",
		zap.String("mesh", r.MeshName),
		zap.Int64("seed", r.Seed),
		zap.Int("passes", s.Passes),
		zap.Int("failed", s.Failed),
		zap.Int("moves", s.TotalMoves),
		zap.Int("vertices_moved", s.VerticesMoved),
		zap.Float64("mean_accepted", s.MeanAccepted),
		zap.Float64("stddev_accepted", s.StdDevAccepted),
		zap.Float64("median_accepted", s.MedianAccepted),
		zap.Float64("acceptance_rate", s.AcceptanceRate))
	d := s.Displacement
	log.Info(fmt.Sprintf("net displacement: mean %.3f, std %.3f, min %.3f, Q1 %.3f, median %.3f, Q3 %.3f, max %.3f",
		d.Mean, d.StdDev, d.Min, d.Q1, d.Median, d.Q3, d.Max))
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
