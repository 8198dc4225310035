package selector

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

func toPoint(v r2.Vec) kdtree.Point {
	return kdtree.Point{v.X, v.Y}
}

// AverageNearestNeighbor returns the mean Euclidean distance from each point
// to its nearest other point. Coincident points count as distance 0.
// Fewer than two points give 0.
func AverageNearestNeighbor(points []r2.Vec) float64 {
	if len(points) < 2 {
		return 0
	}

	// kdtree.New reorders its input, so it gets its own slice.
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = toPoint(p)
	}
	tree := kdtree.New(pts, false)

	var sum float64
	for _, p := range points {
		// The two nearest are the point itself and its neighbour.
		keep := kdtree.NewNKeeper(2)
		tree.NearestSet(keep, toPoint(p))

		nearest := 0.0
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			nearest = math.Max(nearest, cd.Dist)
		}
		sum += math.Sqrt(nearest) // Point.Distance is squared
	}
	return sum / float64(len(points))
}

// bounds returns the component-wise minimum and maximum of points.
func bounds(points []r2.Vec) (lo, hi r2.Vec) {
	if len(points) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}
