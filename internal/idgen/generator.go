// Package idgen implements the Snowflake-style 64-bit ID stream: a
// per-process monotonic counter whose worker-ID component is assigned
// externally (see internal/workerid) so that many processes can issue IDs
// without colliding.
package idgen

import (
	"runtime"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01T00:00:00Z in milliseconds. All timestamps in an
	// ID are stored relative to this, which is what buys the layout its
	// ~69-year lifespan within 41 bits.
	Epoch int64 = 1704067200000

	timestampBits = 41
	workerIDBits  = 10
	sequenceBits  = 12

	// MaxWorkerID is the largest valid worker ID (10 bits).
	MaxWorkerID int64 = 1<<workerIDBits - 1
	// MaxSequence is the largest intra-millisecond sequence value (12 bits).
	MaxSequence int64 = 1<<sequenceBits - 1

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Components is the result of parsing an ID back into its constituent
// fields.
type Components struct {
	TimestampMS int64
	WorkerID    int64
	Sequence    int64
}

// Generator produces strictly monotonic, worker-scoped 64-bit IDs. It is
// safe for concurrent use; all state is guarded by a single mutex, which is
// sufficient because issuance is sub-microsecond work.
type Generator struct {
	mu            sync.Mutex
	workerID      int64
	lastMS        int64
	seq           int64
	disabled      bool // set true once the owning worker-ID lease is lost
	disabledCause error
}

// New constructs a Generator bound to workerID, which must be in
// [0, MaxWorkerID]. Construction never touches the KV registry; the caller
// (internal/workerid) is responsible for acquiring workerID first.
func New(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{workerID: workerID}, nil
}

// WorkerID returns the worker ID this generator was constructed with.
func (g *Generator) WorkerID() int64 {
	return g.workerID
}

// Disable permanently stops the generator from issuing further IDs,
// returning cause from every subsequent GenerateID call. cmd/server invokes
// it when the worker-ID manager reports a lost lease on its Lost() channel
// (see internal/workerid), since continuing to mint IDs under a possibly
// duplicated worker ID would silently break W1.
func (g *Generator) Disable(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disabled = true
	g.disabledCause = cause
}

// GenerateID returns the next ID in the stream.
//
// On a detected clock regression it returns a *ClockError and does not
// advance internal state; last_ms is never mutated downward. On sequence
// exhaustion within a single millisecond it busy-waits for the clock to
// advance rather than failing, per S4.
func (g *Generator) GenerateID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disabled {
		return 0, g.disabledCause
	}

	now := currentTimestampMS()

	if now < g.lastMS {
		return 0, newClockError(now, g.lastMS, g.workerID)
	}

	if now == g.lastMS {
		g.seq = (g.seq + 1) & MaxSequence
		if g.seq == 0 {
			// Per-millisecond sequence space exhausted; spin until the
			// clock strictly advances, then restart the sequence at 0.
			now = waitNextMillis(g.lastMS)
		}
	} else {
		g.seq = 0
	}

	g.lastMS = now

	id := ((now - Epoch) << timestampShift) | (g.workerID << workerIDShift) | g.seq
	return id, nil
}

// Parse recovers the components of an ID produced by any Generator sharing
// this package's layout.
func Parse(id int64) Components {
	return Components{
		TimestampMS: (id >> timestampShift) + Epoch,
		WorkerID:    (id >> workerIDShift) & MaxWorkerID,
		Sequence:    id & MaxSequence,
	}
}

// currentTimestampMS is overridable in tests to simulate clock regression
// and millisecond-boundary behavior without sleeping real wall-clock time.
var currentTimestampMS = func() int64 {
	return time.Now().UnixMilli()
}

// waitNextMillis busy-waits (yielding via runtime.Gosched so other
// goroutines still get scheduler time) until the clock reads strictly
// later than lastMS, then returns the new reading. This is deliberately a
// spin and not a sleep: the wait is bounded by a single millisecond, so the
// cost of blocking the goroutine briefly is cheaper and more precise than
// a timer-based sleep.
func waitNextMillis(lastMS int64) int64 {
	ts := currentTimestampMS()
	for ts <= lastMS {
		runtime.Gosched()
		ts = currentTimestampMS()
	}
	return ts
}
