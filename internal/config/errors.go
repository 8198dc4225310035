package config

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// InputKind names the run input an InputError refers to.
type InputKind string

// Input kinds.
const (
	KindConfig     InputKind = "config"
	KindDescriptor InputKind = "run descriptor"
	KindProjection InputKind = "projection table"
	KindMesh       InputKind = "mesh"
)

// InputError reports a missing or unparsable run input.
type InputError struct {
	Kind InputKind
	Path string
	Err  error
}

func (e *InputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err as an InputError, or returns nil for a nil err.
func NewInputError(kind InputKind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &InputError{Kind: kind, Path: path, Err: err}
}
