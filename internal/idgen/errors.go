package idgen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWorkerID is returned by New when workerID falls outside
// [0, MaxWorkerID].
var ErrInvalidWorkerID = errors.New("idgen: invalid worker id")

// ErrClockMovedBack is the sentinel wrapped by ClockError; use errors.Is
// against this value or errors.As against *ClockError.
var ErrClockMovedBack = errors.New("idgen: clock moved backwards")

// ClockError reports a detected backward clock movement, carrying enough
// detail for an operator to tell an NTP step from a VM migration.
type ClockError struct {
	CurrentMS int64 // wall clock reading that triggered the error
	LastMS    int64 // last timestamp this generator committed
	WorkerID  int64
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("idgen: clock moved backwards: current=%d last=%d delta=%dms worker=%d",
		e.CurrentMS, e.LastMS, e.LastMS-e.CurrentMS, e.WorkerID)
}

func (e *ClockError) Unwrap() error { return ErrClockMovedBack }

// Delta returns the backward drift as a duration.
func (e *ClockError) Delta() time.Duration {
	return time.Duration(e.LastMS-e.CurrentMS) * time.Millisecond
}

// IsClockError reports whether err is or wraps a *ClockError.
func IsClockError(err error) bool {
	var clockErr *ClockError
	return errors.As(err, &clockErr)
}

func newClockError(current, last, workerID int64) *ClockError {
	return &ClockError{CurrentMS: current, LastMS: last, WorkerID: workerID}
}
