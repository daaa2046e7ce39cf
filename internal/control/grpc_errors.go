package control

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/maritime-simulator/internal/sim/run"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

// ErrInvalidRequest is returned when a request message cannot be decoded
// into a command.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps run controller errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, run.ErrVesselNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, run.ErrInvalidConfig),
		errors.Is(err, run.ErrInvalidVesselState),
		errors.Is(err, timectrl.ErrInvalidInterval):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, run.ErrInvalidOperation),
		errors.Is(err, run.ErrNotConfigured),
		errors.Is(err, run.ErrRunEnded):
		return status.Error(codes.FailedPrecondition, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
