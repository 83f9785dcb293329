package runtime

import (
	"sync"
	"time"
)

// pendingRequest is a caller-side slot awaiting its reply. The slot channel
// is buffered with capacity one: whoever takes the entry out of the store is
// the only party allowed to write to it, so the send can never block.
type pendingRequest struct {
	slot      chan []byte
	createdAt time.Time
}

// pendingStore maps correlation ids to in-flight requests. Every entry is
// removed exactly once: either the reply listener takes it, or the caller's
// timeout path removes it, whichever runs first. Both paths go through
// LoadAndDelete, so the loser observes a miss and does nothing.
type pendingStore struct {
	entries sync.Map
}

func newPendingStore() *pendingStore {
	return &pendingStore{}
}

func (s *pendingStore) put(id string, p *pendingRequest) {
	s.entries.Store(id, p)
}

// take atomically removes and returns the entry for id.
func (s *pendingStore) take(id string) (*pendingRequest, bool) {
	v, ok := s.entries.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return v.(*pendingRequest), true
}

// remove drops the entry for id if it is still present. Safe to call after
// the listener already took it.
func (s *pendingStore) remove(id string) {
	s.entries.Delete(id)
}

// size counts the in-flight entries. Used for metrics and tests only.
func (s *pendingStore) size() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
