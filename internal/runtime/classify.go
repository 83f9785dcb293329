package runtime

import (
	"errors"

	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
)

// ErrorClassifier maps a handler failure onto the closed reply taxonomy.
// Classification happens exactly once, at the dispatch boundary.
type ErrorClassifier func(error) envelope.ErrorKind

// defaultErrorClassifier folds the classification sentinels into kinds.
// TEMPORARY_UNAVAILABLE is reserved for caller-synthesized timeouts and is
// never produced worker-side; anything unclaimed stays UNKNOWN.
func defaultErrorClassifier(err error) envelope.ErrorKind {
	switch {
	case errors.Is(err, errspkg.ErrNotFound):
		return envelope.KindNotFound
	case errors.Is(err, errspkg.ErrConflict), errors.Is(err, errspkg.ErrInvalidPayload):
		return envelope.KindValidation
	case errors.Is(err, errspkg.ErrFatal):
		return envelope.KindFatal
	default:
		return envelope.KindUnknown
	}
}
