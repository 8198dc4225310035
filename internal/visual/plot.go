package visual

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Faultbox/segmata/internal/report"
)

// DisplacementPlot builds a "displacement vs vertex number" scatter with one
// series per pass.
func DisplacementPlot(r *report.Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Displacements of %s", r.MeshName)
	p.X.Label.Text = "vertex number"
	p.Y.Label.Text = "displacement"
	p.Add(plotter.NewGrid())

	for i, pass := range r.Passes {
		if len(pass.Moves) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(pass.Moves))
		for j, m := range pass.Moves {
			pts[j].X = float64(m.Vertex + 1)
			pts[j].Y = m.Displacement
		}

		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("pass %d scatter: %w", pass.Pass+1, err)
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Shape = plotutil.Shape(i)
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("pass %d", pass.Pass+1), s)
	}
	return p, nil
}

// PlotDisplacements saves the displacement plot as an image; the format
// follows the path extension.
func PlotDisplacements(r *report.Report, path string) error {
	p, err := DisplacementPlot(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
