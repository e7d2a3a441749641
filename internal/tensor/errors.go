package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is returned when operand axes, label lists or value counts are
// inconsistent. No partial result is ever produced.
var ErrShape = errors.New("tensor: shape mismatch")

// ErrLabel is returned when an entry references a label that is not declared
// on its axis. It is a shape-class error: errors.Is(ErrLabel, ErrShape) holds.
var ErrLabel = fmt.Errorf("%w: unknown label", ErrShape)

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

func labelErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLabel, fmt.Sprintf(format, args...))
}
