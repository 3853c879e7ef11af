package app

import (
	"sync"

	"github.com/google/uuid"
)

// batchLocker serializes all mutations for a given batch id. Concurrent
// approve and execute calls on the same batch must not interleave; operations
// on different batches proceed independently.
type batchLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newBatchLocker() *batchLocker {
	return &batchLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex for the batch and returns the unlock function.
// Lock entries are retained for the life of the process; the set of active
// batches is bounded by pay-period cadence.
func (l *batchLocker) Lock(batchID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[batchID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[batchID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
