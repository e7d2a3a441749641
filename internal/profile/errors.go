package profile

import (
	"errors"
	"fmt"
)

// ErrValidation is the class of all profile construction errors.
var ErrValidation = errors.New("profile: invalid step")

var (
	ErrNegativeFlux        = fmt.Errorf("%w: flux cannot be negative", ErrValidation)
	ErrNonPositiveDuration = fmt.Errorf("%w: duration must be positive", ErrValidation)
	ErrUnknownUnits        = fmt.Errorf("%w: unknown time units", ErrValidation)
	ErrUnknownRecord       = fmt.Errorf("%w: unknown record", ErrValidation)
)
