package run

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/maritime-simulator/model"
)

var (
	// ErrInvalidConfig indicates a rejected duration or seed at commit time.
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrInvalidOperation indicates a command that is not legal in the current state.
	ErrInvalidOperation = errors.New("operation not allowed in current state")
	// ErrNotConfigured indicates a command that needs a committed configuration.
	ErrNotConfigured = errors.New("run configuration not committed")
	// ErrRunEnded indicates a command issued after the run ended; Reset is required.
	ErrRunEnded = errors.New("run has ended; new run required")
	// ErrInvalidVesselState indicates an unknown target state for SetVesselState.
	ErrInvalidVesselState = errors.New("unknown vessel state")
	// ErrVesselNotFound indicates no live vessel has the requested ID.
	ErrVesselNotFound = errors.New("vessel not found")
)

// OperationError reports a rejected lifecycle command. The run state is
// unchanged by the rejected command and is recorded in State.
type OperationError struct {
	Op    string
	State model.RunState
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s rejected in state %s: %v", e.Op, e.State, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
