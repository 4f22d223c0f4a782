// Package workerid implements the cluster-wide worker-ID registry client:
// acquisition, periodic renewal, and release of the small integer that lets
// many front-end processes share one Snowflake-ID space without colliding.
package workerid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// State is the worker-ID manager's lifecycle state.
type State int

const (
	Unleased State = iota
	Acquiring
	Held
	Releasing
)

func (s State) String() string {
	switch s {
	case Unleased:
		return "unleased"
	case Acquiring:
		return "acquiring"
	case Held:
		return "held"
	case Releasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// MaxWorkerID is the largest worker ID this registry will ever hand out;
// it matches the 10-bit field idgen reserves for the worker component.
const MaxWorkerID = 1023

const keyPrefix = "worker_id:lease:"

// ErrNoWorkerIDAvailable is returned by Acquire when every candidate ID in
// [0, MaxWorkerID] is already leased.
var ErrNoWorkerIDAvailable = errors.New("workerid: no worker id available in pool")

// ErrLeaseLost is the sentinel wrapped into the error pushed onto Lost()
// when a renewal discovers the lease slot was reclaimed out from under us.
var ErrLeaseLost = errors.New("workerid: lease lost, slot re-taken by another holder")

// Config tunes lease TTL and renewal cadence. Zero values fall back to the
// spec's defaults (60s lease, 30s renewal).
type Config struct {
	LeaseTTL      time.Duration
	RenewInterval time.Duration
	MaxWorkerID   int64
}

// DefaultConfig returns the spec's default lease tuning.
func DefaultConfig() Config {
	return Config{
		LeaseTTL:      60 * time.Second,
		RenewInterval: 30 * time.Second,
		MaxWorkerID:   MaxWorkerID,
	}
}

// Manager leases a single worker ID from the shared pool for the lifetime
// of this process and keeps it alive with a background renewal goroutine.
type Manager struct {
	redis  *redis.Client
	cfg    Config
	logger *zap.SugaredLogger

	identity string // hostname+pid+random: jitters the scan order and is the lease value

	mu       sync.Mutex
	state    State
	workerID int64

	stopRenew chan struct{}
	renewDone chan struct{}
	lost      chan error
	lostOnce  sync.Once
}

// NewManager constructs a Manager bound to client. It performs no network
// I/O until Acquire is called.
func NewManager(client *redis.Client, cfg Config, logger *zap.SugaredLogger) *Manager {
	def := DefaultConfig()
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = def.LeaseTTL
	}
	if cfg.RenewInterval == 0 {
		cfg.RenewInterval = def.RenewInterval
	}
	return &Manager{
		redis:    client,
		cfg:      cfg,
		logger:   logger,
		identity: fmt.Sprintf("%s-%d-%s", hostname(), os.Getpid(), uuid.NewString()),
		state:    Unleased,
		lost:     make(chan error, 1),
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

// Lost returns a channel that receives exactly once, carrying an error
// wrapping ErrLeaseLost, when the renewal loop observes that this
// process's slot was reclaimed by another holder (the spec's split-brain
// condition, §4.3). The process's lifecycle owner should treat this as
// fatal: stop serving, disable the bound generator, and exit non-zero
// rather than risk two processes emitting IDs under the same worker ID.
func (m *Manager) Lost() <-chan error {
	return m.lost
}

// Acquire walks the candidate pool starting from a jittered offset (a hash
// of this process's identity, not always 0) so that many processes racing
// to start at once don't all serialize on the same low-numbered keys. The
// first candidate that accepts a set-if-absent claim becomes this
// process's worker ID, and a renewal goroutine is started for it.
func (m *Manager) Acquire(ctx context.Context) (int64, error) {
	m.mu.Lock()
	m.state = Acquiring
	m.mu.Unlock()

	poolSize := m.cfg.MaxWorkerID + 1
	offset := int64(xxhash.Sum64String(m.identity)) % poolSize
	if offset < 0 {
		offset += poolSize
	}

	for i := int64(0); i < poolSize; i++ {
		candidate := (offset + i) % poolSize
		key := leaseKey(candidate)

		acquired, err := m.redis.SetNX(ctx, key, m.identity, m.cfg.LeaseTTL).Result()
		if err != nil {
			m.logger.Warnw("worker id probe failed", "candidate", candidate, "error", err)
			continue
		}
		if !acquired {
			continue
		}

		m.mu.Lock()
		m.state = Held
		m.workerID = candidate
		m.stopRenew = make(chan struct{})
		m.renewDone = make(chan struct{})
		m.mu.Unlock()

		m.logger.Infow("leased worker id", "worker_id", candidate)
		go m.renewLoop(key, candidate)

		return candidate, nil
	}

	m.mu.Lock()
	m.state = Unleased
	m.mu.Unlock()
	return -1, ErrNoWorkerIDAvailable
}

// renewLoop periodically extends the held lease's TTL. If the key has
// disappeared (TTL expired under scheduling pause, partition, or
// eviction), it attempts one re-claim of the same slot; success is logged
// as a warning and renewal continues, but failure means another holder has
// already taken the slot, which is reported on Lost() exactly once.
func (m *Manager) renewLoop(key string, workerID int64) {
	defer close(m.renewDone)

	ticker := time.NewTicker(m.cfg.RenewInterval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-ticker.C:
			existed, err := m.redis.Expire(ctx, key, m.cfg.LeaseTTL).Result()
			if err != nil {
				m.logger.Warnw("lease renewal transport error, will retry", "worker_id", workerID, "error", err)
				continue
			}
			if existed {
				continue
			}

			m.logger.Warnw("lease expired before renewal, attempting reclaim", "worker_id", workerID)
			reclaimed, err := m.redis.SetNX(ctx, key, m.identity, m.cfg.LeaseTTL).Result()
			if err != nil {
				// Transport failure, not a confirmed loss: retry on the next
				// tick rather than declaring the lease lost (§7 TransientInfraError).
				m.logger.Warnw("reclaim attempt failed, will retry", "worker_id", workerID, "error", err)
				continue
			}
			if !reclaimed {
				// A successful reply telling us the key is already held by
				// someone else is the actual split-brain condition.
				m.reportLost(workerID)
				return
			}
			m.logger.Warnw("reclaimed expired lease", "worker_id", workerID)

		case <-m.stopRenew:
			m.redis.Del(ctx, key)
			return
		}
	}
}

func (m *Manager) reportLost(workerID int64) {
	m.lostOnce.Do(func() {
		m.lost <- fmt.Errorf("%w: worker_id=%d", ErrLeaseLost, workerID)
	})
}

// Release cancels renewal and deletes the held key, returning to Unleased.
// It is best-effort: a crashed process relies on the TTL for reclamation
// instead.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Held {
		m.mu.Unlock()
		return nil
	}
	m.state = Releasing
	stopRenew := m.stopRenew
	renewDone := m.renewDone
	m.mu.Unlock()

	close(stopRenew)

	select {
	case <-renewDone:
	case <-ctx.Done():
	}

	m.mu.Lock()
	m.state = Unleased
	m.mu.Unlock()
	return nil
}

// WorkerID returns the currently held worker ID; callers must only invoke
// this after a successful Acquire.
func (m *Manager) WorkerID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerID
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func leaseKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}
