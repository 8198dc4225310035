// objtool is a CLI utility for inspecting segmata inputs and outputs offline.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/segmata/internal/evaluate"
	"github.com/Faultbox/segmata/internal/render"
	"github.com/Faultbox/segmata/internal/selector"
	"github.com/Faultbox/segmata/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args, os.Stdout)
	case "roundtrip", "rt":
		err = cmdRoundtrip(args, os.Stdout)
	case "select", "sel":
		err = cmdSelect(args, os.Stdout, os.Stderr)
	case "score":
		err = cmdScore(args, os.Stdout, os.Stderr)
	case "displace", "mv":
		err = cmdDisplace(args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	switch {
	case errors.Is(err, errNotPreserved):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`objtool - segmata mesh and render inspection utility

Usage:
  objtool <command> [options]

Commands:
  info <file.obj> [table.csv]              Show mesh (and projection) statistics
  roundtrip <file.obj> [output.obj]        Parse and re-encode, report differences
  select <table.csv>                       Preview a seeded candidate set
  score <trial.img> <ref.img> <table.csv>  Window scores of vertices
  displace <file.obj> <output.obj>         Move vertices along their normals

Vertex indices are 0-based.

Examples:
  objtool info segment.obj segment_uv.csv
  objtool select -seed 42 -strategy exact segment_uv.csv
  objtool score -half 25 -v 10,11,12 32.jpg 32.jpg_ref.png segment_uv.csv
  objtool displace -d -2 -v 10,11 segment.obj moved.obj`)
}

// errNotPreserved is returned by roundtrip when re-encoding changed the
// vertex positions.
var errNotPreserved = errors.New("vertices not preserved")

// usageError reports missing arguments.
type usageError string

func (e usageError) Error() string {
	return "usage: objtool " + string(e)
}

// parseIndices parses a comma separated vertex list such as "1,5,9".
func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid vertex index %q", part)
		}
		out = append(out, i)
	}
	return out, nil
}

func cmdInfo(args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError("info <file.obj> [table.csv]")
	}

	obj, err := formats.LoadOBJ(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Mesh:     %s\n", args[0])
	fmt.Fprintf(out, "Vertices: %d\n", len(obj.Vertices))
	fmt.Fprintf(out, "Normals:  %d\n", len(obj.Normals))
	fmt.Fprintf(out, "Faces:    %d\n", len(obj.Faces))
	fmt.Fprintf(out, "Comments: %d\n", len(obj.Comments))
	fmt.Fprintf(out, "Other:    %d\n", len(obj.Others))
	if err := obj.Validate(); err != nil {
		fmt.Fprintf(out, "Warning:  %v\n", err)
	}

	if len(obj.Vertices) > 0 {
		lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
		hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
		for _, v := range obj.Vertices {
			lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
			hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
		}
		fmt.Fprintf(out, "Bounds:   (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	}

	if len(args) < 2 {
		return nil
	}
	table, err := formats.LoadProjection(args[1])
	if err != nil {
		return err
	}

	factor := selector.DefaultOptions().SeparationFactor
	ann := selector.AverageNearestNeighbor(table.Coords())
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Projection: %s\n", args[1])
	fmt.Fprintf(out, "Rows:       %d\n", table.Len())
	fmt.Fprintf(out, "Avg NN:     %.6g\n", ann)
	fmt.Fprintf(out, "Separation: %.6g (factor %g)\n", ann*factor, factor)
	if table.Len() != len(obj.Vertices) {
		fmt.Fprintf(out, "Warning:    %d rows for %d vertices\n", table.Len(), len(obj.Vertices))
	}
	return nil
}

func cmdRoundtrip(args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError("roundtrip <file.obj> [output.obj]")
	}

	original, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	obj, err := formats.ParseOBJ(original)
	if err != nil {
		return err
	}
	encoded := obj.Bytes()

	again, err := formats.ParseOBJ(encoded)
	if err != nil {
		return err
	}

	same := len(again.Vertices) == len(obj.Vertices)
	for i := 0; same && i < len(obj.Vertices); i++ {
		same = again.Vertices[i] == obj.Vertices[i]
	}
	fmt.Fprintf(out, "Vertices preserved: %v\n", same)
	fmt.Fprintf(out, "Byte identical:     %v\n", bytes.Equal(original, encoded))
	fmt.Fprintf(out, "Size:               %d -> %d bytes\n", len(original), len(encoded))

	if len(args) > 1 {
		if err := os.WriteFile(args[1], encoded, 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "Written: %s\n", args[1])
	}
	if !same {
		return errNotPreserved
	}
	return nil
}

func cmdSelect(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	fs.SetOutput(errOut)
	defaults := selector.DefaultOptions()
	fraction := fs.Float64("fraction", defaults.Fraction, "Share of vertices sampled")
	factor := fs.Float64("factor", defaults.SeparationFactor, "Separation as a multiple of the average NN distance")
	strategy := fs.String("strategy", defaults.Strategy.String(), "Declustering strategy: grid or exact")
	seed := fs.Int64("seed", 0, "Random seed (0 = random)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return usageError("select [options] <table.csv>")
	}

	table, err := formats.LoadProjection(fs.Arg(0))
	if err != nil {
		return err
	}
	strat, err := selector.ParseStrategy(*strategy)
	if err != nil {
		return err
	}

	sel := selector.New(table.Coords(), selector.Options{Fraction: *fraction, SeparationFactor: *factor, Strategy: strat})
	rng, used := selector.NewRand(*seed)
	candidates := sel.Select(rng)
	sort.Ints(candidates)

	for _, i := range candidates {
		uv := table.At(i)
		fmt.Fprintf(out, "%d\t%.6f\t%.6f\n", i, uv.X, uv.Y)
	}
	fmt.Fprintf(errOut, "\n(%d of %d sampled kept, separation %.6g, seed %d)\n",
		len(candidates), sel.SampleSize(), sel.Separation(), used)
	return nil
}

func cmdScore(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(errOut)
	half := fs.Int("half", evaluate.DefaultHalfWidth, "Window half-width in pixels")
	vertices := fs.String("v", "", "Comma separated vertex indices (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 3 {
		return usageError("score [options] <trial.img> <ref.img> <table.csv>")
	}

	trial, err := render.LoadImage(fs.Arg(0))
	if err != nil {
		return err
	}
	ref, err := render.LoadImage(fs.Arg(1))
	if err != nil {
		return err
	}
	table, err := formats.LoadProjection(fs.Arg(2))
	if err != nil {
		return err
	}

	candidates, err := parseIndices(*vertices)
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = make([]int, table.Len())
		for i := range candidates {
			candidates[i] = i
		}
	}

	scores, err := evaluate.New(*half).Score(trial, ref, table.Coords(), candidates)
	if err != nil {
		return err
	}

	accepted := 0
	for _, s := range scores {
		mark := ""
		if s.Accepted {
			mark = "accepted"
			accepted++
		}
		fmt.Fprintf(out, "%d\t(%d,%d)\t%+.4f\t%s\n", s.Vertex, s.Pixel.X, s.Pixel.Y, s.Mean, mark)
	}
	fmt.Fprintf(errOut, "\n(%d of %d accepted)\n", accepted, len(scores))
	return nil
}

func cmdDisplace(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("displace", flag.ContinueOnError)
	fs.SetOutput(errOut)
	distance := fs.Float64("d", 2, "Signed distance along the normal")
	vertices := fs.String("v", "", "Comma separated vertex indices (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 2 || *vertices == "" {
		return usageError("displace -v <indices> [-d distance] <file.obj> <output.obj>")
	}

	indices, err := parseIndices(*vertices)
	if err != nil {
		return err
	}

	obj, err := formats.LoadOBJ(fs.Arg(0))
	if err != nil {
		return err
	}
	moved, err := obj.Displaced(indices, *distance)
	if err != nil {
		return err
	}

	output := fs.Arg(1)
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(output, moved.Bytes(), 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Displaced %d vertices by %g: %s\n", len(indices), *distance, output)
	return nil
}
