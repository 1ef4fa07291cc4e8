package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/udisondev/tickregion/internal/model"
)

// ErrStuck marks a region pass aborted by the watchdog.
var ErrStuck = errors.New("tick stuck")

// StuckError is the abortive failure delivered to a stuck region pass.
// The watchdog installs it as the run context's cancel cause; the tick body raises it
// (panic) at the next cancellation point and only the worker loop recovers it.
type StuckError struct {
	Region  string
	Elapsed time.Duration

	// Member being processed when the abort was observed (zero if between members).
	MemberID  uint32
	MemberLoc model.Location
}

func (e *StuckError) Error() string {
	if e.MemberID != 0 {
		return fmt.Sprintf("tick stuck: region %s after %s at object %d (%s)", e.Region, e.Elapsed, e.MemberID, e.MemberLoc)
	}
	return fmt.Sprintf("tick stuck: region %s after %s", e.Region, e.Elapsed)
}

// Unwrap makes errors.Is(err, ErrStuck) work.
func (e *StuckError) Unwrap() error {
	return ErrStuck
}

// at returns a copy annotated with the member being processed.
func (e *StuckError) at(obj model.Trackable) *StuckError {
	cp := *e
	if obj != nil {
		cp.MemberID = obj.ObjectID()
		cp.MemberLoc = obj.Location()
	}
	return &cp
}

// stuckCause extracts StuckError from ctx cancel cause.
func stuckCause(ctx context.Context) (*StuckError, bool) {
	var se *StuckError
	if errors.As(context.Cause(ctx), &se) {
		return se, true
	}
	return nil, false
}

// CheckStuck is a cancellation point for long-running update callbacks:
// it panics with *StuckError if the watchdog has aborted the current pass.
func CheckStuck(ctx context.Context) {
	if ctx.Err() == nil {
		return
	}
	if se, ok := stuckCause(ctx); ok {
		panic(se)
	}
}

// abortIfStuck is the tick body's cancellation point. Returns true if ctx is done for
// a non-stuck reason (shutdown): the caller abandons the pass quietly.
func abortIfStuck(ctx context.Context, obj model.Trackable) bool {
	if ctx.Err() == nil {
		return false
	}
	if se, ok := stuckCause(ctx); ok {
		panic(se.at(obj))
	}
	return true
}
