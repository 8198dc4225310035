package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// createTestOBJ builds OBJ text with n vertices along X, all with normal +X.
func createTestOBJ(n int) []byte {
	var sb strings.Builder
	sb.WriteString("# segment export\n")
	sb.WriteString("mtllib segment.mtl\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "v %d 0.5 -1.25\n", i)
		sb.WriteString("vn 1 0 0\n")
	}
	sb.WriteString("f 1//1 2//2 3//3\n")
	sb.WriteString("usemtl default\n")
	return []byte(sb.String())
}

func TestParseOBJ_ValidFile(t *testing.T) {
	obj, err := ParseOBJ(createTestOBJ(4))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	if len(obj.Vertices) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(obj.Vertices))
	}
	if len(obj.Normals) != 4 {
		t.Errorf("expected 4 normals, got %d", len(obj.Normals))
	}
	if len(obj.Faces) != 1 || obj.Faces[0] != "f 1//1 2//2 3//3" {
		t.Errorf("unexpected faces: %v", obj.Faces)
	}
	if len(obj.Comments) != 1 || obj.Comments[0] != "# segment export" {
		t.Errorf("unexpected comments: %v", obj.Comments)
	}
	if len(obj.Others) != 2 {
		t.Errorf("expected 2 other lines, got %v", obj.Others)
	}

	want := r3.Vec{X: 3, Y: 0.5, Z: -1.25}
	if obj.Vertices[3] != want {
		t.Errorf("vertex 3 = %v, want %v", obj.Vertices[3], want)
	}
}

func TestParseOBJ_SkipsBlankLinesAndTrims(t *testing.T) {
	data := []byte("\n   v 1 2 3   \n\n\tvn 0 0 1\n#c\n")
	obj, err := ParseOBJ(data)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if len(obj.Vertices) != 1 || len(obj.Normals) != 1 {
		t.Fatalf("expected 1 vertex and 1 normal, got %d and %d", len(obj.Vertices), len(obj.Normals))
	}
	if obj.Comments[0] != "#c" {
		t.Errorf("expected comment '#c', got %q", obj.Comments[0])
	}
}

func TestParseOBJ_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
		line int
	}{
		{"too few fields", "v 1 2 3\nvn 0 0\n", 2},
		{"too many fields", "v 1 2 3 4\n", 1},
		{"not a number", "# c\nv 1 two 3\n", 2},
		{"normal not a number", "vn x y z\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBJ([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrMalformedOBJ) {
				t.Errorf("expected ErrMalformedOBJ, got %v", err)
			}
			var me *MalformedError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MalformedError, got %T", err)
			}
			if me.Line != tt.line {
				t.Errorf("expected line %d, got %d", tt.line, me.Line)
			}
		})
	}
}

func TestOBJ_RoundTrip(t *testing.T) {
	first, err := ParseOBJ(createTestOBJ(5))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	second, err := ParseOBJ(first.Bytes())
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed the mesh:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	// A second save must be byte-identical to the first.
	if string(first.Bytes()) != string(second.Bytes()) {
		t.Error("second save differs from first")
	}
}

func TestOBJ_EncodeOrder(t *testing.T) {
	// Hand-authored input with categories interleaved.
	data := []byte("o segment\nv 0 0 0\nf 1 1 1\n# late comment\nvn 0 1 0\n")
	obj, err := ParseOBJ(data)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}

	got := string(obj.Bytes())
	want := "# late comment\nv 0 0 0\nvn 0 1 0\nf 1 1 1\no segment\n"
	if got != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", got, want)
	}
}

func TestOBJ_FloatPrecisionSurvives(t *testing.T) {
	obj := &OBJ{
		Vertices: []r3.Vec{{X: 0.1 + 0.2, Y: 1e-17, Z: -123456.789012345}},
		Normals:  []r3.Vec{{X: 1.0 / 3.0, Y: 0, Z: 0}},
	}
	back, err := ParseOBJ(obj.Bytes())
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	if back.Vertices[0] != obj.Vertices[0] || back.Normals[0] != obj.Normals[0] {
		t.Errorf("values changed: %v %v -> %v %v", obj.Vertices[0], obj.Normals[0], back.Vertices[0], back.Normals[0])
	}
}

func TestOBJ_Validate(t *testing.T) {
	obj := &OBJ{
		Vertices: []r3.Vec{{}, {}},
		Normals:  []r3.Vec{{}},
	}
	if err := obj.Validate(); !errors.Is(err, ErrNormalCount) {
		t.Errorf("expected ErrNormalCount, got %v", err)
	}
	obj.Normals = append(obj.Normals, r3.Vec{})
	if err := obj.Validate(); err != nil {
		t.Errorf("expected valid mesh, got %v", err)
	}
}

func TestOBJ_Displaced(t *testing.T) {
	obj := &OBJ{
		Vertices: []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}, {X: 7, Y: 8, Z: 9}},
		Normals:  []r3.Vec{{X: 0, Y: 0, Z: 1}, {X: 0.5, Y: -0.25, Z: 2}, {X: 1, Y: 0, Z: 0}},
	}
	orig := obj.Clone()

	for _, dir := range []float64{-1, 1} {
		d := dir * 2
		moved, err := obj.Displaced([]int{1}, d)
		if err != nil {
			t.Fatalf("Displaced failed: %v", err)
		}

		want := r3.Vec{
			X: orig.Vertices[1].X + d*orig.Normals[1].X,
			Y: orig.Vertices[1].Y + d*orig.Normals[1].Y,
			Z: orig.Vertices[1].Z + d*orig.Normals[1].Z,
		}
		if moved.Vertices[1] != want {
			t.Errorf("dir %v: vertex 1 = %v, want %v", dir, moved.Vertices[1], want)
		}
		if moved.Vertices[0] != orig.Vertices[0] || moved.Vertices[2] != orig.Vertices[2] {
			t.Errorf("dir %v: untouched vertices changed", dir)
		}
	}

	if !reflect.DeepEqual(obj, orig) {
		t.Error("Displaced modified the receiver")
	}

	if _, err := obj.Displaced([]int{3}, 1); !errors.Is(err, ErrVertexIndex) {
		t.Errorf("expected ErrVertexIndex, got %v", err)
	}
}

func TestLoadOBJ_Missing(t *testing.T) {
	_, err := LoadOBJ(filepath.Join(t.TempDir(), "missing.obj"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
