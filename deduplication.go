package renovo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"sync"
)

// DeduplicationEntry represents an in-flight request shared between callers.
// The settled Result is handed to every waiter; Decode only reads it, so the
// sharing is safe.
type DeduplicationEntry struct {
	result  *Result
	err     error
	done    chan struct{}
	mu      sync.Mutex
	waiters int
}

// DeduplicationTracker coalesces identical in-flight requests so only one of
// them reaches the network. Entries are removed the moment their request
// settles; a request arriving after that starts fresh instead of reading a
// stale outcome.
type DeduplicationTracker struct {
	mu      sync.RWMutex
	entries map[string]*DeduplicationEntry
}

// NewDeduplicationTracker returns an in-memory de-duplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*DeduplicationEntry),
	}
}

// GetOrCreateEntry returns an existing entry (not owner) or creates a new one (owner=true).
func (dt *DeduplicationTracker) GetOrCreateEntry(key string) (*DeduplicationEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &DeduplicationEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	dt.entries[key] = entry
	return entry, true
}

// Complete finalizes an entry and releases waiters. The entry leaves the map
// before the broadcast so late arrivals cannot join a settled flight.
func (dt *DeduplicationTracker) Complete(key string, result *Result, err error) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	if exists {
		delete(dt.entries, key)
	}
	dt.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.result = result
	entry.err = err
	entry.mu.Unlock()
	close(entry.done)
}

// Wait blocks until the owning request completes or context cancels.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.result, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeduplicationKeyFunc builds a key for identifying identical in-flight requests.
type DeduplicationKeyFunc func(method, url string, body []byte) string

// DefaultDeduplicationKeyFunc keys on method + URL, folding in a body hash
// for payload-carrying requests so different writes never coalesce.
func DefaultDeduplicationKeyFunc(method, url string, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte(url))
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		h.Write(sum[:])
	}
	return fmt.Sprintf("%x", h.Sum64())
}
