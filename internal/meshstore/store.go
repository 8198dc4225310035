// Package meshstore owns the committed mesh file of a run: the single OBJ on
// disk that passes read from and commit to, its backup, and the scratch files
// trials are rendered from.
package meshstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/segmata/pkg/formats"
)

// ErrMeshNotFound is returned by Open when the OBJ file does not exist.
var ErrMeshNotFound = errors.New("mesh file not found")

// Store is a handle on the committed mesh. It has one writer: the pass
// controller. Every Load reads the file fresh so a caller always sees the
// last commit.
type Store struct {
	path     string
	trialDir string
}

// Open returns a Store for the OBJ at path. Trial files are written to the
// same directory.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMeshNotFound, path)
		}
		return nil, fmt.Errorf("opening mesh: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("opening mesh: %s is a directory", path)
	}
	return &Store{path: path, trialDir: filepath.Dir(path)}, nil
}

// Path returns the committed mesh location.
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns where Backup copies the committed mesh.
func (s *Store) BackupPath() string {
	return s.path + ".bak"
}

// Load parses the committed mesh.
func (s *Store) Load() (*formats.OBJ, error) {
	return formats.LoadOBJ(s.path)
}

// Backup copies the committed mesh to BackupPath, replacing any older copy.
func (s *Store) Backup() error {
	return CopyFile(s.path, s.BackupPath())
}

// Commit replaces the committed mesh with obj. The new content is written to
// a temporary file in the same directory and renamed over the old one, so a
// reader sees either the previous or the new mesh, never a partial file.
func (s *Store) Commit(obj *formats.OBJ) error {
	return writeAtomic(s.path, obj)
}

// TrialPath returns the scratch file name for one trial. Names are qualified
// by pass and direction (-1, +1, or 0 for the pass baseline) so a stale file
// from another trial is never picked up.
func (s *Store) TrialPath(pass, direction int) string {
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	tag := "base"
	switch {
	case direction < 0:
		tag = "m"
	case direction > 0:
		tag = "p"
	}
	return filepath.Join(s.trialDir, fmt.Sprintf("temp_%s_pass%d_%s.obj", base, pass, tag))
}

// WriteTrial writes obj to the trial file of pass/direction and returns its path.
func (s *Store) WriteTrial(obj *formats.OBJ, pass, direction int) (string, error) {
	path := s.TrialPath(pass, direction)
	if err := writeAtomic(path, obj); err != nil {
		return "", fmt.Errorf("writing trial mesh: %w", err)
	}
	return path, nil
}

// RemoveTrial deletes a trial file. A file that is already gone is not an error.
func (s *Store) RemoveTrial(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeAtomic(path string, obj *formats.OBJ) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := obj.Encode(tmp); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst through a temporary file and rename.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}
