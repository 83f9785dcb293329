package runtime

import (
	"context"
	"fmt"

	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
	"github.com/kvale/busrpc/internal/runtime/jsoncodec"
)

// handlerFunc is the untyped dispatch target stored per message kind.
type handlerFunc func(ctx context.Context, scope Scope, payload []byte) (envelope.Response, error)

// TypedHandler processes a decoded request of the kind's payload type.
type TypedHandler[T any] func(ctx context.Context, scope Scope, req T) (envelope.Response, error)

// HandlerRegistration binds a message kind to its payload schema and handler.
// The kind set is closed at registration time; there is no reflective or
// name-based dispatch at delivery time.
type HandlerRegistration[T any] struct {
	Kind    string
	Handler TypedHandler[T]
}

// RegisterHandler wires a typed handler into the worker. Register everything
// before calling Run; a kind can be bound only once.
func RegisterHandler[T any](w *Worker, reg HandlerRegistration[T]) error {
	if w == nil {
		return errspkg.ErrWorkerRequired
	}
	if reg.Kind == "" {
		return errspkg.ErrKindRequired
	}
	if reg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}

	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()

	if _, exists := w.handlers[reg.Kind]; exists {
		return fmt.Errorf("%w: %s", errspkg.ErrKindAlreadyBound, reg.Kind)
	}

	w.handlers[reg.Kind] = func(ctx context.Context, scope Scope, payload []byte) (envelope.Response, error) {
		var req T
		if len(payload) > 0 {
			if err := jsoncodec.Unmarshal(payload, &req); err != nil {
				return envelope.Response{}, fmt.Errorf("%w: %v", errspkg.ErrInvalidPayload, err)
			}
		}
		return reg.Handler(ctx, scope, req)
	}
	return nil
}
