package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfiguration indicates particle parameters that cannot be
	// laid out without overlap or are otherwise out of range.
	ErrInvalidConfiguration = errors.New("dynamo: invalid configuration")

	// ErrSimulationDiverged indicates a non-finite position or velocity.
	ErrSimulationDiverged = errors.New("dynamo: simulation diverged (NaN or Inf detected)")

	// ErrInvalidStep indicates a non-positive timestep or step count.
	ErrInvalidStep = errors.New("dynamo: invalid timestep or step count")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
