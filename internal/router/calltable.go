package router

import (
	"sync"
	"time"
)

const (
	// defaultCallTTL is how long a decided call ID is remembered. Long
	// enough to outlive any call's lifecycle webhooks, short enough that
	// the table never grows without bound.
	defaultCallTTL = time.Hour

	// defaultCleanupInterval is how often expired entries are evicted.
	defaultCleanupInterval = 5 * time.Minute
)

// callTable remembers which call IDs have already been routed so repeat
// lifecycle webhooks never re-trigger a decision or a duplicate push.
type callTable struct {
	mu      sync.Mutex
	decided map[string]time.Time
	ttl     time.Duration
	stopCh  chan struct{}
}

// newCallTable creates a table and starts its background cleanup loop.
func newCallTable(ttl, cleanupInterval time.Duration) *callTable {
	t := &callTable{
		decided: make(map[string]time.Time),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go t.cleanupLoop(cleanupInterval)
	return t
}

// claim marks a call ID as decided. It returns true exactly once per call
// ID within the TTL: the caller that wins the claim makes the decision,
// everyone else acknowledges.
func (t *callTable) claim(callID string) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if at, ok := t.decided[callID]; ok && now.Sub(at) < t.ttl {
		return false
	}
	t.decided[callID] = now
	return true
}

// stop terminates the background cleanup goroutine.
func (t *callTable) stop() {
	close(t.stopCh)
}

// cleanupLoop periodically removes entries older than the TTL.
func (t *callTable) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			t.mu.Lock()
			for id, at := range t.decided {
				if now.Sub(at) >= t.ttl {
					delete(t.decided, id)
				}
			}
			t.mu.Unlock()
		case <-t.stopCh:
			return
		}
	}
}
