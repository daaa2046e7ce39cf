package control

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/maritime-simulator/internal/sim/run"
	"github.com/signalsfoundry/maritime-simulator/model"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "bad request", err: fmt.Errorf("%w: seed", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "bad config", err: run.ErrInvalidConfig, code: codes.InvalidArgument},
		{name: "bad interval", err: &run.OperationError{Op: "set_tick_interval", State: model.RunRunning, Err: timectrl.ErrInvalidInterval}, code: codes.InvalidArgument},
		{name: "bad vessel state", err: run.ErrInvalidVesselState, code: codes.InvalidArgument},
		{name: "vessel not found", err: run.ErrVesselNotFound, code: codes.NotFound},
		{name: "wrong state", err: &run.OperationError{Op: "commit", State: model.RunPaused, Err: run.ErrInvalidOperation}, code: codes.FailedPrecondition},
		{name: "not configured", err: run.ErrNotConfigured, code: codes.FailedPrecondition},
		{name: "run ended", err: run.ErrRunEnded, code: codes.FailedPrecondition},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
