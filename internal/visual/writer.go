// Package visual writes human-facing run artifacts: pass images, a
// before/after comparison and a displacement plot.
package visual

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/anthonynsimon/bild/transform"

	"github.com/Faultbox/segmata/internal/evaluate"
	"github.com/Faultbox/segmata/internal/render"
	"github.com/Faultbox/segmata/internal/report"
)

const (
	// maxPanelWidth bounds each comparison panel; wider renders are scaled down.
	maxPanelWidth = 800
	panelGap      = 8
	diffGain      = 8
)

// Writer saves artifacts under one output directory, prefixed with the
// rendered layer file name (e.g. "32.jpg").
type Writer struct {
	outputDir string
	prefix    string
}

// NewWriter creates a writer for outputDir.
func NewWriter(outputDir, prefix string) *Writer {
	return &Writer{
		outputDir: outputDir,
		prefix:    prefix,
	}
}

// Path returns the artifact path for suffix, e.g. "_ref.png".
func (w *Writer) Path(suffix string) string {
	return filepath.Join(w.outputDir, w.prefix+suffix)
}

// ReferencePath returns where the current pass reference is saved.
func (w *Writer) ReferencePath() string { return w.Path("_ref.png") }

// OriginalPath returns where the first pass reference is saved.
func (w *Writer) OriginalPath() string { return w.Path("_original.png") }

// PassPath returns where the end-of-pass render is saved.
func (w *Writer) PassPath(pass int) string { return w.Path(fmt.Sprintf("_opt_pass%d.png", pass+1)) }

// SaveImage writes img as PNG to path, creating the directory if needed.
func SaveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return file.Close()
}

// Comparison lays out original | optimized | amplified difference side by
// side. The difference panel is mid-gray where the images agree.
func Comparison(original, optimized image.Image) (*image.NRGBA, error) {
	a, b := evaluate.Grayscale(original), evaluate.Grayscale(optimized)
	d, err := evaluate.Diff(b, a)
	if err != nil {
		return nil, err
	}

	panels := []image.Image{original, optimized, d.Amplified(diffGain)}
	for i, p := range panels {
		panels[i] = fitWidth(p, maxPanelWidth)
	}

	pw, ph := panels[0].Bounds().Dx(), panels[0].Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, 3*pw+2*panelGap, ph))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for i, p := range panels {
		x := i * (pw + panelGap)
		draw.Draw(out, image.Rect(x, 0, x+pw, ph), p, p.Bounds().Min, draw.Src)
	}
	return out, nil
}

func fitWidth(img image.Image, width int) image.Image {
	b := img.Bounds()
	if b.Dx() <= width {
		return img
	}
	height := max(1, b.Dy()*width/b.Dx())
	return transform.Resize(img, width, height, transform.Linear)
}

// WriteComparison encodes the comparison of the two images as WebP.
func (w *Writer) WriteComparison(original, optimized image.Image) (string, error) {
	img, err := Comparison(original, optimized)
	if err != nil {
		return "", err
	}

	path := w.Path("_comparison.webp")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := nativewebp.Encode(file, img, nil); err != nil {
		return "", fmt.Errorf("encoding WebP: %w", err)
	}
	return path, file.Close()
}

// Visualize writes the comparison of the run's original and latest
// reference renders and the displacement plot.
func (w *Writer) Visualize(r *report.Report) error {
	original, err := render.LoadImage(w.OriginalPath())
	if err != nil {
		return fmt.Errorf("loading original render: %w", err)
	}
	latest, err := render.LoadImage(w.latestPath(r))
	if err != nil {
		return fmt.Errorf("loading latest render: %w", err)
	}
	if _, err := w.WriteComparison(original, latest); err != nil {
		return err
	}
	return PlotDisplacements(r, w.Path("_displacements.png"))
}

// latestPath is the image of the last successful pass, falling back to the
// original.
func (w *Writer) latestPath(r *report.Report) string {
	for i := len(r.Passes) - 1; i >= 0; i-- {
		if p := r.Passes[i]; !p.Failed() {
			path := w.PassPath(p.Pass)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return w.OriginalPath()
}
