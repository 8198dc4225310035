package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/logger"
)

// stderrTail is how many bytes of renderer stderr are kept for errors.
const stderrTail = 2048

// ExecOracle runs the renderer executable once per Render call and decodes
// the single layer image it writes.
type ExecOracle struct {
	exe       string
	args      []string // everything after --obj <path>
	output    string
	timeout   time.Duration
	stdout    io.Writer
	log       *zap.Logger
	extraArgs []string
}

// NewExecOracle builds an oracle from the render settings. Width and height
// must already be resolved.
func NewExecOracle(cfg config.RenderConfig) (*ExecOracle, error) {
	if cfg.Executable == "" {
		return nil, errors.New("render: no executable configured")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("render: invalid image size %dx%d", cfg.Width, cfg.Height)
	}

	var extra []string
	if strings.TrimSpace(cfg.ExtraArgs) != "" {
		parsed, err := shellwords.Parse(cfg.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("render: parsing extra args: %w", err)
		}
		extra = parsed
	}

	layer := strconv.Itoa(cfg.Layer)
	args := []string{
		"--width", strconv.Itoa(cfg.Width),
		"--height", strconv.Itoa(cfg.Height),
		"--target-dir", cfg.TargetDir,
		"-v", cfg.Version,
		"--min-layer", layer,
		"--max-layer", layer,
		"--target-format", cfg.Format,
		"--data-directory", cfg.DataDir,
	}

	return &ExecOracle{
		exe:       cfg.Executable,
		args:      args,
		output:    filepath.Join(cfg.TargetDir, layer+"."+cfg.Format),
		timeout:   cfg.Timeout,
		stdout:    io.Discard,
		log:       logger.Named("render"),
		extraArgs: extra,
	}, nil
}

// OutputPath returns the image file the renderer writes.
func (o *ExecOracle) OutputPath() string {
	return o.output
}

// SetStdout redirects the renderer's standard output, which is discarded by default.
func (o *ExecOracle) SetStdout(w io.Writer) {
	o.stdout = w
}

// Args returns the full argument list for rendering objPath.
func (o *ExecOracle) Args(objPath string) []string {
	args := make([]string, 0, 2+len(o.args)+len(o.extraArgs))
	args = append(args, "--obj", objPath)
	args = append(args, o.args...)
	return append(args, o.extraArgs...)
}

// Render runs the renderer on objPath and decodes its output. The previous
// output file is removed first so a failed run can never be mistaken for a
// fresh image.
func (o *ExecOracle) Render(ctx context.Context, objPath string) (image.Image, error) {
	if err := os.Remove(o.output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("removing stale output: %w", err)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var stderr tailBuffer
	cmd := exec.CommandContext(ctx, o.exe, o.Args(objPath)...)
	cmd.Stdout = o.stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	o.log.Debug("renderer finished",
		zap.String("obj", filepath.Base(objPath)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stderr", stderr.String()))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRenderTimeout, o.timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &Error{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("starting renderer: %w", err)
	}

	img, err := LoadImage(o.output)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrOutputMissing, o.output)
	}
	return img, err
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if extra := t.buf.Len() - stderrTail; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
