package optimizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/meshstore"
)

const testProjection = "u,v\n0.2,0.2\n0.8,0.2\n0.2,0.8\n0.8,0.8\n"

func writeRunInputs(t *testing.T, projection string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment.obj"), []byte(testMesh), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segment_uv.csv"), []byte(projection), 0644))

	cfg := config.Default()
	cfg.Mesh.ObjPath = filepath.Join(dir, "segment.obj")
	cfg.Render.Executable = "renderer"
	cfg.Optimizer.SampleFraction = 1
	cfg.Optimizer.SeparationFactor = 0.5
	cfg.Optimizer.WindowHalfWidth = halfWidth
	cfg.Optimizer.Seed = 5
	require.NoError(t, cfg.Resolve())
	return cfg
}

func TestFromConfig(t *testing.T) {
	cfg := writeRunInputs(t, testProjection)
	oracle := &fakeOracle{preference: []float64{+1, -1, +1, -1}}

	ctrl, err := FromConfig(cfg, oracle)
	require.NoError(t, err)
	assert.Equal(t, int64(5), ctrl.Report().Seed)
	assert.Equal(t, "segment", ctrl.Report().MeshName)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "32.jpg_ref.png"), ctrl.Artifacts().ReferencePath())

	r, err := ctrl.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, r.Passes, 1)
	assert.Equal(t, 4, r.Passes[0].Accepted())
}

func TestFromConfigInputErrors(t *testing.T) {
	t.Run("projection rows", func(t *testing.T) {
		cfg := writeRunInputs(t, "0.2,0.2\n0.8,0.2\n")
		_, err := FromConfig(cfg, &fakeOracle{})

		var inErr *config.InputError
		require.True(t, errors.As(err, &inErr))
		assert.Equal(t, config.KindProjection, inErr.Kind)
		assert.ErrorIs(t, err, ErrProjectionMismatch)
	})

	t.Run("projection missing", func(t *testing.T) {
		cfg := writeRunInputs(t, testProjection)
		cfg.Mesh.ProjectionPath = filepath.Join(t.TempDir(), "absent.csv")
		_, err := FromConfig(cfg, &fakeOracle{})

		var inErr *config.InputError
		require.True(t, errors.As(err, &inErr))
		assert.Equal(t, config.KindProjection, inErr.Kind)
	})

	t.Run("mesh missing", func(t *testing.T) {
		cfg := writeRunInputs(t, testProjection)
		cfg.Mesh.ObjPath = filepath.Join(t.TempDir(), "absent.obj")
		_, err := FromConfig(cfg, &fakeOracle{})
		assert.ErrorIs(t, err, meshstore.ErrMeshNotFound)
	})

	t.Run("bad strategy", func(t *testing.T) {
		cfg := writeRunInputs(t, testProjection)
		cfg.Optimizer.Strategy = "poisson"
		_, err := FromConfig(cfg, &fakeOracle{})
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
}
