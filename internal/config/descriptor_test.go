package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDescriptor_JSON(t *testing.T) {
	path := writeDescriptor(t, `{"20241207134906": {"width": 2159, "height": 684}, "segment_test": {"width": 593, "height": 527}}`)

	d, err := LoadDescriptor(path, "segment_test")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Width: 593, Height: 527}, d)
}

func TestLoadDescriptor_YAML(t *testing.T) {
	path := writeDescriptor(t, "seg:\n  width: 10\n  height: 20\n")

	d, err := LoadDescriptor(path, "seg")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Width)
	assert.Equal(t, 20, d.Height)
}

func TestLoadDescriptor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mesh    string
		want    error
	}{
		{"missing entry", `{"other": {"width": 1, "height": 1}}`, "seg", ErrDescriptorEntry},
		{"zero size", `{"seg": {"width": 0, "height": 5}}`, "seg", ErrDescriptorSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDescriptor(writeDescriptor(t, tt.content), tt.mesh)
			assert.ErrorIs(t, err, tt.want)

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, KindDescriptor, ie.Kind)
		})
	}
}

func TestLoadDescriptor_Malformed(t *testing.T) {
	_, err := LoadDescriptor(writeDescriptor(t, `{"seg": [1, 2`), "seg")
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, KindDescriptor, ie.Kind)
}

func TestLoadDescriptor_MissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "nope.json"), "seg")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyDescriptor(t *testing.T) {
	cfg := Default()
	cfg.Mesh.ObjPath = "/x/seg.obj"
	cfg.Mesh.DescriptorPath = writeDescriptor(t, `{"seg": {"width": 640, "height": 480}}`)

	require.NoError(t, cfg.ApplyDescriptor())
	assert.Equal(t, 640, cfg.Render.Width)
	assert.Equal(t, 480, cfg.Render.Height)

	// Explicit sizes win and the descriptor is not read.
	cfg.Mesh.DescriptorPath = "/does/not/exist.json"
	cfg.Render.Width, cfg.Render.Height = 100, 50
	require.NoError(t, cfg.ApplyDescriptor())
	assert.Equal(t, 100, cfg.Render.Width)
}
