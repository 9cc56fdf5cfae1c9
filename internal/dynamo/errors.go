package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the fluid core.
var (
	// ErrCapacityExceeded indicates a particle fill would overflow the fixed allocation.
	ErrCapacityExceeded = errors.New("dynamo: particle capacity exceeded")

	// ErrInvalidConfiguration indicates a scene or scheduler parameter is out of range.
	ErrInvalidConfiguration = errors.New("dynamo: invalid configuration")

	// ErrNonConvergence indicates the pressure solve left a residual above the
	// diagnostic threshold. It is a quality warning; the step still completes.
	ErrNonConvergence = errors.New("dynamo: pressure solve did not converge")
)

// ConfigError names the offending configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// InvalidConfig is a shorthand for building a *ConfigError.
func InvalidConfig(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapacityError reports how many particles a fill asked for.
type CapacityError struct {
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrCapacityExceeded, e.Requested, e.Available)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}

// ResidualError carries the pressure residual that tripped the threshold.
type ResidualError struct {
	Step       uint64
	Iterations int
	Residual   float64
	Threshold  float64
}

func (e *ResidualError) Error() string {
	return fmt.Sprintf("step %d: %s: residual %.3g > %.3g after %d iterations",
		e.Step, ErrNonConvergence, e.Residual, e.Threshold, e.Iterations)
}

func (e *ResidualError) Unwrap() error {
	return ErrNonConvergence
}
