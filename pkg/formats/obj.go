package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// OBJ format errors.
var (
	ErrMalformedOBJ = errors.New("malformed OBJ data")
	ErrNormalCount  = errors.New("vertex and normal counts differ")
	ErrVertexIndex  = errors.New("vertex index out of range")
)

// MalformedError reports a v or vn record that is not exactly three numbers.
type MalformedError struct {
	Line   int    // 1-based line number
	Text   string // trimmed line content
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("OBJ line %d %q: %s", e.Line, e.Text, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedOBJ.
func (e *MalformedError) Unwrap() error {
	return ErrMalformedOBJ
}

// OBJ is the subset of a Wavefront OBJ surface the optimizer works with.
// Vertex i is paired with normal i. Face records, comments and every other
// line are carried through untouched.
type OBJ struct {
	Vertices []r3.Vec
	Normals  []r3.Vec
	Faces    []string
	Comments []string
	Others   []string
}

// ParseOBJ parses OBJ text from raw bytes.
// Lines are trimmed and blank lines dropped.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch {
		case fields[0] == "v":
			v, err := parseTriple(fields[1:])
			if err != nil {
				return nil, &MalformedError{Line: lineNo, Text: line, Reason: err.Error()}
			}
			obj.Vertices = append(obj.Vertices, v)
		case fields[0] == "vn":
			n, err := parseTriple(fields[1:])
			if err != nil {
				return nil, &MalformedError{Line: lineNo, Text: line, Reason: err.Error()}
			}
			obj.Normals = append(obj.Normals, n)
		case fields[0] == "f":
			obj.Faces = append(obj.Faces, line)
		case strings.HasPrefix(fields[0], "#"):
			obj.Comments = append(obj.Comments, line)
		default:
			obj.Others = append(obj.Others, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning OBJ: %w", err)
	}

	return obj, nil
}

func parseTriple(fields []string) (r3.Vec, error) {
	if len(fields) != 3 {
		return r3.Vec{}, fmt.Errorf("expected 3 numeric fields, got %d", len(fields))
	}
	var xyz [3]float64
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("field %d: %q is not a number", i+1, f)
		}
		xyz[i] = val
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// LoadOBJ parses an OBJ file from disk.
func LoadOBJ(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}

// Encode writes the mesh in save order: comments, interleaved v/vn pairs,
// faces, others. Pairs stop at the shorter of the two sequences.
// No invariant is checked; call Validate first if that matters.
func (o *OBJ) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, line := range o.Comments {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}

	n := min(len(o.Vertices), len(o.Normals))
	for i := 0; i < n; i++ {
		writeTriple(bw, "v", o.Vertices[i])
		writeTriple(bw, "vn", o.Normals[i])
	}

	for _, line := range o.Faces {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	for _, line := range o.Others {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

func writeTriple(bw *bufio.Writer, tag string, v r3.Vec) {
	bw.WriteString(tag)
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		bw.WriteByte(' ')
		bw.WriteString(strconv.FormatFloat(c, 'g', -1, 64))
	}
	bw.WriteByte('\n')
}

// Bytes returns the encoded mesh.
func (o *OBJ) Bytes() []byte {
	var buf bytes.Buffer
	_ = o.Encode(&buf) // bytes.Buffer writes do not fail
	return buf.Bytes()
}

// Validate checks that every vertex has a normal.
func (o *OBJ) Validate() error {
	if len(o.Vertices) != len(o.Normals) {
		return fmt.Errorf("%w: %d vertices, %d normals", ErrNormalCount, len(o.Vertices), len(o.Normals))
	}
	return nil
}

// VertexCount returns the number of vertex positions.
func (o *OBJ) VertexCount() int {
	return len(o.Vertices)
}

// Clone returns a copy whose vertex slice can be modified independently.
// Normals and passthrough records are shared since nothing mutates them.
func (o *OBJ) Clone() *OBJ {
	c := *o
	c.Vertices = append([]r3.Vec(nil), o.Vertices...)
	return &c
}

// Displace moves vertex i by distance along its own normal:
// position[i] + distance*normal[i].
func (o *OBJ) Displace(i int, distance float64) error {
	if i < 0 || i >= len(o.Vertices) || i >= len(o.Normals) {
		return fmt.Errorf("%w: %d", ErrVertexIndex, i)
	}
	o.Vertices[i] = r3.Add(o.Vertices[i], r3.Scale(distance, o.Normals[i]))
	return nil
}

// Displaced returns a clone with every listed vertex moved by distance along
// its normal. The receiver is not modified.
func (o *OBJ) Displaced(indices []int, distance float64) (*OBJ, error) {
	c := o.Clone()
	for _, i := range indices {
		if err := c.Displace(i, distance); err != nil {
			return nil, err
		}
	}
	return c, nil
}
