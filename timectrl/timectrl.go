package timectrl

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrInvalidInterval is returned for non-positive tick intervals.
var ErrInvalidInterval = errors.New("tick interval must be positive")

const (
	// DefaultInterval is the automatic tick period when none is configured.
	DefaultInterval = 250 * time.Millisecond
	// MinInterval is the shortest accepted period; shorter values are clamped.
	MinInterval = 10 * time.Millisecond
)

// Pacer blocks between automatic ticks. Wait returns false when ctx is
// cancelled before the next tick is due, in which case no tick may follow.
type Pacer interface {
	Wait(ctx context.Context) bool
}

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime waits one interval of wall-clock time between ticks.
	RealTime Mode = iota
	// Accelerated runs ticks back to back, only yielding the scheduler.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController paces the automatic tick loop. The interval can be changed
// at any time; a wait already in progress keeps the interval it started
// with, so a change applies from the next period on.
type TimeController struct {
	mu       sync.RWMutex
	interval time.Duration
	mode     Mode
}

// NewTimeController constructs a controller. A non-positive interval falls
// back to DefaultInterval.
func NewTimeController(interval time.Duration, mode Mode) *TimeController {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	return &TimeController{interval: interval, mode: mode}
}

// Interval returns the current tick period.
func (tc *TimeController) Interval() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.interval
}

// Mode returns the pacing mode.
func (tc *TimeController) Mode() Mode {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.mode
}

// SetInterval changes the tick period and returns the value actually applied.
func (tc *TimeController) SetInterval(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, ErrInvalidInterval
	}
	if d < MinInterval {
		d = MinInterval
	}
	tc.mu.Lock()
	tc.interval = d
	tc.mu.Unlock()
	return d, nil
}

// Wait blocks for one period, or until ctx is done. Implements Pacer.
func (tc *TimeController) Wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if tc.Mode() == Accelerated {
		runtime.Gosched()
		return ctx.Err() == nil
	}

	timer := time.NewTimer(tc.Interval())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// Run calls step immediately and then once per period until step returns
// false or the pacer's wait is cancelled. It returns a channel that is
// closed when the loop exits.
func Run(ctx context.Context, p Pacer, step func() bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if !step() {
				return
			}
			if !p.Wait(ctx) {
				return
			}
		}
	}()
	return done
}

// Manual is a Pacer released explicitly, for driving the loop one period at
// a time in tests and tools.
type Manual struct {
	permits chan struct{}
}

// NewManual returns a Manual pacer with room for up to 1024 pending releases.
func NewManual() *Manual {
	return &Manual{permits: make(chan struct{}, 1024)}
}

// Release lets n further waits complete.
func (m *Manual) Release(n int) {
	for i := 0; i < n; i++ {
		m.permits <- struct{}{}
	}
}

// Wait blocks until a release is available or ctx is done. Implements Pacer.
func (m *Manual) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-m.permits:
		return ctx.Err() == nil
	}
}
