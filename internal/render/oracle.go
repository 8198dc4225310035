// Package render drives the external renderer that turns a mesh into an
// image. The optimizer treats it as a black box: a mesh path goes in, a
// decoded image comes out.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrRenderFailed is returned when the renderer exits with a non-zero status.
	ErrRenderFailed = errors.New("renderer failed")
	// ErrRenderTimeout is returned when the renderer does not finish in time.
	ErrRenderTimeout = errors.New("renderer timed out")
	// ErrOutputMissing is returned when the renderer exits cleanly but the
	// expected image was not written.
	ErrOutputMissing = errors.New("render output missing")
	// ErrUnsupportedImage is returned when the output is not a known image format.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Oracle renders a mesh file to an image.
type Oracle interface {
	Render(ctx context.Context, objPath string) (image.Image, error)
}

// Error describes a renderer process that exited with a failure status.
type Error struct {
	ExitCode int
	Stderr   string // tail of the renderer's standard error
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("renderer exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("renderer exited with status %d: %s", e.ExitCode, e.Stderr)
}

func (e *Error) Unwrap() error {
	return ErrRenderFailed
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, objPath string) (image.Image, error)

// Render calls f.
func (f OracleFunc) Render(ctx context.Context, objPath string) (image.Image, error) {
	return f(ctx, objPath)
}
