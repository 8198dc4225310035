// Package evaluate scores a trial render against a reference render. A
// vertex's score is the mean signed grayscale difference in a square window
// around its projected pixel; a positive mean means the trial brightened the
// region, which is taken as improvement.
package evaluate

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrSizeMismatch is returned when a trial and its reference differ in size.
var ErrSizeMismatch = errors.New("image size mismatch")

// Grayscale converts img to 8-bit luma using the ITU-R BT.601 weights.
// The result always has its origin at (0,0).
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// DiffImage is the signed per-pixel difference trial minus reference, stored
// with a summed-area table so window means are constant time.
type DiffImage struct {
	width, height int
	pix           []int16
	sat           []int64 // (width+1)*(height+1), row and column 0 are zero
}

// Diff returns trial - ref.
func Diff(trial, ref *image.Gray) (*DiffImage, error) {
	tb, rb := trial.Bounds(), ref.Bounds()
	if tb.Dx() != rb.Dx() || tb.Dy() != rb.Dy() {
		return nil, fmt.Errorf("%w: trial %dx%d, reference %dx%d",
			ErrSizeMismatch, tb.Dx(), tb.Dy(), rb.Dx(), rb.Dy())
	}

	w, h := tb.Dx(), tb.Dy()
	d := &DiffImage{
		width:  w,
		height: h,
		pix:    make([]int16, w*h),
		sat:    make([]int64, (w+1)*(h+1)),
	}
	stride := w + 1
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			v := int16(trial.GrayAt(tb.Min.X+x, tb.Min.Y+y).Y) - int16(ref.GrayAt(rb.Min.X+x, rb.Min.Y+y).Y)
			d.pix[y*w+x] = v
			row += int64(v)
			d.sat[(y+1)*stride+x+1] = d.sat[y*stride+x+1] + row
		}
	}
	return d, nil
}

// Bounds returns the pixel rectangle of the difference image.
func (d *DiffImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.width, d.height)
}

// At returns the signed difference at (x, y), or 0 outside the image.
func (d *DiffImage) At(x, y int) int16 {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return 0
	}
	return d.pix[y*d.width+x]
}

// WindowMean returns the mean difference over [x-half, x+half] x
// [y-half, y+half] clipped to the image. An empty clipped window gives 0.
func (d *DiffImage) WindowMean(x, y, half int) float64 {
	x0, y0 := max(x-half, 0), max(y-half, 0)
	x1, y1 := min(x+half+1, d.width), min(y+half+1, d.height)
	if x0 >= x1 || y0 >= y1 {
		return 0
	}
	stride := d.width + 1
	sum := d.sat[y1*stride+x1] - d.sat[y0*stride+x1] - d.sat[y1*stride+x0] + d.sat[y0*stride+x0]
	return float64(sum) / float64((x1-x0)*(y1-y0))
}

// Amplified maps the difference to a gray image centred on 128, scaled by
// gain and clamped.
func (d *DiffImage) Amplified(gain float64) *image.Gray {
	out := image.NewGray(d.Bounds())
	for i, v := range d.pix {
		out.Pix[i] = uint8(math.Max(0, math.Min(255, 128+gain*float64(v))))
	}
	return out
}

// PixelOf maps a projection coordinate to a pixel: x = floor(u*w),
// y = floor(v*h). The result may lie outside the image.
func PixelOf(uv r2.Vec, w, h int) image.Point {
	return image.Point{
		X: int(math.Floor(uv.X * float64(w))),
		Y: int(math.Floor(uv.Y * float64(h))),
	}
}
