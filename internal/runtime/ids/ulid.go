package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CorrelationID returns a 26-character ULID. IDs are unique for the lifetime
// of the process without any coordination: the timestamp prefix plus 80 bits
// of monotonic entropy make collisions between concurrent callers negligible.
func CorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
