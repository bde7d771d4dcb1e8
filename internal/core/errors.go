package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrGeneration        = errors.New("generation failed")
	ErrEmbedding         = errors.New("embedding failed")
	ErrNotFound          = errors.New("not found")
)

type DimensionMismatchError struct {
	Left  int
	Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d != %d", e.Left, e.Right)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// IsPermanent reports errors that a retry cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDimensionMismatch)
}
