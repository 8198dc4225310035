package selector

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func randomPoints(n int, seed uint64) []r2.Vec {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pts := make([]r2.Vec, n)
	for i := range pts {
		pts[i] = r2.Vec{X: rng.Float64(), Y: rng.Float64()}
	}
	return pts
}

func TestAverageNearestNeighbor(t *testing.T) {
	tests := []struct {
		name   string
		points []r2.Vec
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []r2.Vec{{X: 0.5, Y: 0.5}}, 0},
		{"unit square", []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}, 1},
		{"collinear", []r2.Vec{{X: 0}, {X: 1}, {X: 3}}, 4.0 / 3.0},
		{"coincident pair", []r2.Vec{{X: 0.2, Y: 0.2}, {X: 0.2, Y: 0.2}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AverageNearestNeighbor(tt.points), 1e-12)
		})
	}
}

func TestAverageNearestNeighborMatchesBruteForce(t *testing.T) {
	pts := randomPoints(300, 7)

	var sum float64
	for i, p := range pts {
		best := math.Inf(1)
		for j, q := range pts {
			if i != j {
				best = math.Min(best, r2.Norm(r2.Sub(p, q)))
			}
		}
		sum += best
	}

	assert.InDelta(t, sum/float64(len(pts)), AverageNearestNeighbor(pts), 1e-9)
}

func TestSeparationDerivedFromSpacing(t *testing.T) {
	pts := []r2.Vec{{X: 0}, {X: 1}, {X: 2}}
	s := New(pts, DefaultOptions())
	assert.InDelta(t, 1.0, s.AverageNearestNeighbor(), 1e-12)
	assert.InDelta(t, 5.0, s.Separation(), 1e-12)
}

func TestSampleSize(t *testing.T) {
	pts := randomPoints(11, 1)
	s := New(pts, Options{Fraction: 0.2, SeparationFactor: 5})
	assert.Equal(t, 2, s.SampleSize())

	rng := rand.New(rand.NewPCG(1, 2))
	sample := s.Sample(rng)
	require.Len(t, sample, 2)
	assert.NotEqual(t, sample[0], sample[1])
}

func TestSelectAllWhenCellsDoNotCollide(t *testing.T) {
	// Four vertices more than one unit apart, separation 0.5.
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}}
	for _, strategy := range []Strategy{StrategyGrid, StrategyExact} {
		s := NewWithSeparation(pts, 0.5, Options{Fraction: 1, Strategy: strategy})
		got := s.Select(rand.New(rand.NewPCG(3, 4)))
		assert.ElementsMatch(t, []int{0, 1, 2, 3}, got, strategy.String())
	}
}

func TestGridCellsAreExclusive(t *testing.T) {
	pts := randomPoints(2000, 11)
	s := New(pts, Options{Fraction: 0.5, SeparationFactor: 5, Strategy: StrategyGrid})
	require.Greater(t, s.Separation(), 0.0)

	for seed := uint64(0); seed < 20; seed++ {
		got := s.Select(rand.New(rand.NewPCG(seed, seed)))
		require.NotEmpty(t, got)

		cells := map[[2]int]int{}
		for _, i := range got {
			c := s.Cell(i)
			if prev, dup := cells[c]; dup {
				t.Fatalf("seed %d: vertices %d and %d share cell %v", seed, prev, i, c)
			}
			cells[c] = i
		}
	}
}

func TestGridFirstSeenWins(t *testing.T) {
	pts := []r2.Vec{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}, {X: 5, Y: 5}}
	s := NewWithSeparation(pts, 1, Options{Fraction: 1})
	assert.Equal(t, []int{1, 2}, s.Decluster([]int{1, 0, 2}))
	assert.Equal(t, []int{0, 2}, s.Decluster([]int{0, 1, 2}))
}

func TestExactStrategyKeepsSeparation(t *testing.T) {
	pts := randomPoints(1500, 5)
	s := New(pts, Options{Fraction: 0.5, SeparationFactor: 3, Strategy: StrategyExact})
	sep := s.Separation()

	got := s.Select(rand.New(rand.NewPCG(9, 9)))
	require.NotEmpty(t, got)
	for a := 0; a < len(got); a++ {
		for b := a + 1; b < len(got); b++ {
			d := r2.Norm(r2.Sub(pts[got[a]], pts[got[b]]))
			if d < sep {
				t.Fatalf("vertices %d and %d are %.5f apart, separation %.5f", got[a], got[b], d, sep)
			}
		}
	}
}

func TestZeroSeparationKeepsSamples(t *testing.T) {
	pts := []r2.Vec{{X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 0.5}}
	s := New(pts, Options{Fraction: 1, SeparationFactor: 5})
	assert.Zero(t, s.Separation())
	assert.Len(t, s.Select(rand.New(rand.NewPCG(1, 1))), 3)
}

func TestSelectIsReproducible(t *testing.T) {
	pts := randomPoints(1000, 3)
	for _, strategy := range []Strategy{StrategyGrid, StrategyExact} {
		s := New(pts, Options{Fraction: 0.2, SeparationFactor: 5, Strategy: strategy})

		rngA, _ := NewRand(1234)
		rngB, _ := NewRand(1234)
		assert.Equal(t, s.Select(rngA), s.Select(rngB), strategy.String())
	}
}

func TestNewRandReportsSeed(t *testing.T) {
	_, seed := NewRand(77)
	assert.Equal(t, int64(77), seed)

	_, drawn := NewRand(0)
	assert.NotZero(t, drawn)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("exact")
	require.NoError(t, err)
	assert.Equal(t, StrategyExact, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyGrid, s)

	_, err = ParseStrategy("poisson")
	assert.Error(t, err)
}
