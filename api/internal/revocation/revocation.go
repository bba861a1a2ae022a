// Package revocation tracks access tokens that were logged out before they
// expired. Entries are keyed by the token's jti and dropped once the token
// would have expired anyway.
package revocation

import (
	"context"
	"strings"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// List records revoked token identifiers.
type List interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Close() error
}

type memoryList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryList returns a process local List with a background sweeper.
func NewMemoryList() List {
	l := &memoryList{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *memoryList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !until.After(l.now()) {
		return nil
	}
	l.entries[tokenID] = until
	return nil
}

func (l *memoryList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !until.After(l.now()) {
		delete(l.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (l *memoryList) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *memoryList) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, until := range l.entries {
		if !until.After(now) {
			delete(l.entries, id)
		}
	}
}

func (l *memoryList) Close() error {
	l.once.Do(func() {
		close(l.stopCh)
	})
	return nil
}
