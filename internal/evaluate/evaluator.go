package evaluate

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultHalfWidth is the default window half-width in pixels (a 51x51 window).
const DefaultHalfWidth = 25

// Score is one candidate's result for one trial.
type Score struct {
	Vertex   int
	Pixel    image.Point
	Mean     float64
	Accepted bool // Mean > 0
}

// Evaluator scores trial renders.
type Evaluator struct {
	HalfWidth int
}

// New returns an Evaluator with the given window half-width.
func New(halfWidth int) *Evaluator {
	return &Evaluator{HalfWidth: halfWidth}
}

// Score compares trial against ref at each candidate's projected pixel.
// uvs is indexed by vertex.
func (e *Evaluator) Score(trial, ref image.Image, uvs []r2.Vec, candidates []int) ([]Score, error) {
	d, err := Diff(Grayscale(trial), Grayscale(ref))
	if err != nil {
		return nil, err
	}
	return e.ScoreDiff(d, uvs, candidates)
}

// ScoreDiff scores candidates against an existing difference image.
func (e *Evaluator) ScoreDiff(d *DiffImage, uvs []r2.Vec, candidates []int) ([]Score, error) {
	w, h := d.width, d.height
	scores := make([]Score, len(candidates))
	for k, i := range candidates {
		if i < 0 || i >= len(uvs) {
			return nil, fmt.Errorf("candidate %d outside projection table of %d rows", i, len(uvs))
		}
		p := PixelOf(uvs[i], w, h)
		mean := d.WindowMean(p.X, p.Y, e.HalfWidth)
		scores[k] = Score{Vertex: i, Pixel: p, Mean: mean, Accepted: mean > 0}
	}
	return scores, nil
}

// Partition splits scores into accepted and rejected vertex indices, keeping
// their order.
func Partition(scores []Score) (accepted, rejected []int) {
	for _, s := range scores {
		if s.Accepted {
			accepted = append(accepted, s.Vertex)
		} else {
			rejected = append(rejected, s.Vertex)
		}
	}
	return accepted, rejected
}
