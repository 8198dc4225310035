package formats

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Faultbox/segmata/pkg/encoding"
)

// Projection table errors.
var (
	ErrMalformedProjection = errors.New("malformed projection table")
	ErrEmptyProjection     = errors.New("empty projection table")
)

// ProjectionTable maps vertex index to normalized (u, v) image coordinates.
// Row i belongs to vertex i of the mesh it was exported with.
type ProjectionTable struct {
	coords []r2.Vec
}

// NewProjectionTable wraps a coordinate slice. The slice is copied.
func NewProjectionTable(coords []r2.Vec) *ProjectionTable {
	return &ProjectionTable{coords: append([]r2.Vec(nil), coords...)}
}

// Len returns the number of rows.
func (t *ProjectionTable) Len() int {
	return len(t.coords)
}

// At returns the (u, v) pair of vertex i.
func (t *ProjectionTable) At(i int) r2.Vec {
	return t.coords[i]
}

// Coords returns a copy of all rows.
func (t *ProjectionTable) Coords() []r2.Vec {
	return append([]r2.Vec(nil), t.coords...)
}

// ParseProjection parses delimited text where the first two columns of each
// row hold the normalized coordinates. The delimiter (comma, semicolon or
// tab) is taken from the first line, and a non-numeric first row is treated
// as a header. With a semicolon delimiter a decimal comma is accepted, as
// written by spreadsheets in European locales. UTF-16 and Windows-1252
// input is converted first.
func ParseProjection(data []byte) (*ProjectionTable, error) {
	data, err := encoding.ToUTF8(encoding.TrimNullBytes(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProjection, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyProjection
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	decimalComma := r.Comma == ';'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	var coords []r2.Vec
	row := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedProjection, err)
		}
		row++

		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: row %d has %d columns, need at least 2", ErrMalformedProjection, row, len(rec))
		}

		u, errU := parseCoord(rec[0], decimalComma)
		v, errV := parseCoord(rec[1], decimalComma)
		if errU != nil || errV != nil {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedProjection, row, errors.Join(errU, errV))
		}
		coords = append(coords, r2.Vec{X: u, Y: v})
	}

	if len(coords) == 0 {
		return nil, ErrEmptyProjection
	}
	return &ProjectionTable{coords: coords}, nil
}

func parseCoord(s string, decimalComma bool) (float64, error) {
	s = strings.TrimSpace(s)
	if decimalComma {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}

func detectDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	switch {
	case bytes.IndexByte(first, '\t') >= 0:
		return '\t'
	case bytes.IndexByte(first, ';') >= 0:
		return ';'
	default:
		return ','
	}
}

// LoadProjection parses a projection table file from disk.
func LoadProjection(path string) (*ProjectionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading projection table: %w", err)
	}
	return ParseProjection(data)
}
