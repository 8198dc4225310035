// Package selector chooses the vertices perturbed in one pass. Samples are
// declustered in projection space so that one vertex's trial displacement
// does not leak into a neighbour's score window.
package selector

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

// Strategy selects the declustering method.
type Strategy int

const (
	// StrategyGrid keeps the first sample in each cell of a grid whose cell
	// side is the separation. Two kept points in adjacent cells can still be
	// closer than the separation.
	StrategyGrid Strategy = iota
	// StrategyExact keeps a sample only if no kept point lies closer than the
	// separation, using a kd-tree nearest query.
	StrategyExact
)

// String returns the config name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyGrid:
		return "grid"
	case StrategyExact:
		return "exact"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a config name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "grid", "":
		return StrategyGrid, nil
	case "exact":
		return StrategyExact, nil
	default:
		return 0, fmt.Errorf("unknown declustering strategy %q", name)
	}
}

// Options configures a Selector.
type Options struct {
	Fraction         float64 // share of all vertices sampled per pass
	SeparationFactor float64 // separation = factor * average nearest neighbour distance
	Strategy         Strategy
}

// DefaultOptions returns the standard sampling settings.
func DefaultOptions() Options {
	return Options{
		Fraction:         0.2,
		SeparationFactor: 5,
		Strategy:         StrategyGrid,
	}
}

// Selector draws declustered candidate sets from a fixed projection table.
type Selector struct {
	points     []r2.Vec
	opts       Options
	avgNN      float64
	separation float64
	origin     r2.Vec
}

// New prepares a Selector. The nearest-neighbour statistic is computed once
// here since the projection does not change during a run.
func New(points []r2.Vec, opts Options) *Selector {
	avg := AverageNearestNeighbor(points)
	origin, _ := bounds(points)
	return &Selector{
		points:     points,
		opts:       opts,
		avgNN:      avg,
		separation: opts.SeparationFactor * avg,
		origin:     origin,
	}
}

// NewWithSeparation prepares a Selector with a fixed separation instead of
// one derived from the point spacing.
func NewWithSeparation(points []r2.Vec, separation float64, opts Options) *Selector {
	s := New(points, opts)
	s.separation = separation
	return s
}

// AverageNearestNeighbor returns the spacing statistic computed by New.
func (s *Selector) AverageNearestNeighbor() float64 { return s.avgNN }

// Separation returns the minimum intended distance between candidates.
func (s *Selector) Separation() float64 { return s.separation }

// Strategy returns the declustering strategy in use.
func (s *Selector) Strategy() Strategy { return s.opts.Strategy }

// SampleSize returns how many indices Sample draws.
func (s *Selector) SampleSize() int {
	k := int(s.opts.Fraction * float64(len(s.points)))
	return min(max(k, 0), len(s.points))
}

// Sample draws SampleSize distinct indices uniformly at random.
func (s *Selector) Sample(rng *rand.Rand) []int {
	return rng.Perm(len(s.points))[:s.SampleSize()]
}

// Select returns one pass's candidate set: a uniform sample declustered by
// the configured strategy. The same rng state yields the same set.
func (s *Selector) Select(rng *rand.Rand) []int {
	return s.Decluster(s.Sample(rng))
}

// Decluster filters sampled indices, keeping earlier samples over later
// ones. A zero separation keeps everything.
func (s *Selector) Decluster(samples []int) []int {
	if s.separation <= 0 {
		return append([]int(nil), samples...)
	}
	switch s.opts.Strategy {
	case StrategyExact:
		return s.declusterExact(samples)
	default:
		return s.declusterGrid(samples)
	}
}

// Cell returns the grid cell of vertex i at the current separation.
func (s *Selector) Cell(i int) [2]int {
	p := s.points[i]
	return [2]int{
		int(math.Floor((p.X - s.origin.X) / s.separation)),
		int(math.Floor((p.Y - s.origin.Y) / s.separation)),
	}
}

func (s *Selector) declusterGrid(samples []int) []int {
	occupied := make(map[[2]int]struct{}, len(samples))
	kept := make([]int, 0, len(samples))
	for _, i := range samples {
		c := s.Cell(i)
		if _, taken := occupied[c]; taken {
			continue
		}
		occupied[c] = struct{}{}
		kept = append(kept, i)
	}
	return kept
}

func (s *Selector) declusterExact(samples []int) []int {
	limit := s.separation * s.separation
	tree := &kdtree.Tree{}
	kept := make([]int, 0, len(samples))
	for _, i := range samples {
		p := toPoint(s.points[i])
		if _, d := tree.Nearest(p); d < limit {
			continue
		}
		tree.Insert(p, false)
		kept = append(kept, i)
	}
	return kept
}

// NewRand returns the generator a run samples with. A zero seed is replaced
// by one drawn from the runtime's entropy source; the seed used is returned
// so the run can be reproduced.
func NewRand(seed int64) (*rand.Rand, int64) {
	for seed == 0 {
		seed = rand.Int64()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)), seed
}
