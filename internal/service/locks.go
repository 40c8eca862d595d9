package service

import (
	"context"
	"sync"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// lockTTL bounds how long a per-market lock may be held. It only matters for
// the distributed implementation; the local one releases on unlock.
const lockTTL = 10 * time.Second

// LocalLockManager implements domain.LockManager for single-process
// deployments without Redis. Locks are plain in-memory mutex slots keyed by
// name; Acquire fails immediately with ErrLockHeld instead of blocking, the
// same contract the Redis implementation has.
type LocalLockManager struct {
	mu    sync.Mutex
	locks map[string]bool
}

// NewLocalLockManager creates an empty LocalLockManager.
func NewLocalLockManager() *LocalLockManager {
	return &LocalLockManager{locks: make(map[string]bool)}
}

// Acquire takes the named lock or returns domain.ErrLockHeld. The TTL is
// ignored: local locks live until their unlock function runs.
func (lm *LocalLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.locks[key] {
		return nil, domain.ErrLockHeld
	}
	lm.locks[key] = true

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.locks, key)
	}
	return unlock, nil
}

var _ domain.LockManager = (*LocalLockManager)(nil)
