package pipeline

import (
	"context"
	"sync"
	"time"
)

// userLocks serializes pipeline runs per user. Each user maps to a
// one-slot semaphore; acquisition is bounded so a stuck run degrades into
// a busy signal instead of an unbounded queue.
type userLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

func newUserLocks(wait time.Duration) *userLocks {
	return &userLocks{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *userLocks) slot(userID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[userID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[userID] = slot
	}
	return slot
}

// acquire takes the user's slot, waiting at most the configured bound.
// The returned release function is safe to call exactly once.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	slot := l.slot(userID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-timer.C:
		return nil, ErrSessionBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
