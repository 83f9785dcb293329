package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingEntry() *pendingRequest {
	return &pendingRequest{slot: make(chan []byte, 1), createdAt: time.Now()}
}

func TestTakeReturnsEntryExactlyOnce(t *testing.T) {
	store := newPendingStore()
	store.put("abc", newPendingEntry())

	first, ok := store.take("abc")
	require.True(t, ok)
	require.NotNil(t, first)

	second, ok := store.take("abc")
	assert.False(t, ok)
	assert.Nil(t, second)
}

func TestRemoveAfterTakeIsNoOp(t *testing.T) {
	store := newPendingStore()
	store.put("abc", newPendingEntry())

	_, ok := store.take("abc")
	require.True(t, ok)

	store.remove("abc")
	assert.Equal(t, 0, store.size())
}

func TestTakeAfterRemoveMisses(t *testing.T) {
	store := newPendingStore()
	store.put("abc", newPendingEntry())
	store.remove("abc")

	_, ok := store.take("abc")
	assert.False(t, ok)
}

// Race a reply-side take against a timeout-side remove for many entries and
// verify each entry is won by at most one side and ends up removed.
func TestConcurrentTakeAndRemove(t *testing.T) {
	store := newPendingStore()

	const entries = 500
	ids := make([]string, entries)
	for i := range ids {
		ids[i] = fmt.Sprintf("req-%d", i)
		store.put(ids[i], newPendingEntry())
	}

	var taken atomic.Int64
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			if _, ok := store.take(id); ok {
				taken.Add(1)
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			store.remove(id)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, store.size())
	assert.LessOrEqual(t, taken.Load(), int64(entries))
}

func TestSizeCountsInFlight(t *testing.T) {
	store := newPendingStore()
	store.put("a", newPendingEntry())
	store.put("b", newPendingEntry())
	assert.Equal(t, 2, store.size())
}
