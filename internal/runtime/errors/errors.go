package errors

import sterrors "errors"

// Wiring errors returned by constructors and registration.
var (
	ErrConfigRequired     = sterrors.New("busrpc: config is required")
	ErrWorkerRequired     = sterrors.New("busrpc: worker is required")
	ErrQueueRequired      = sterrors.New("busrpc: consume queue is required")
	ErrKindRequired       = sterrors.New("busrpc: message kind is required")
	ErrRoutingKeyRequired = sterrors.New("busrpc: routing key is required")
	ErrHandlerRequired    = sterrors.New("busrpc: handler function is required")
	ErrKindAlreadyBound   = sterrors.New("busrpc: message kind already has a handler")
	ErrCallerClosed       = sterrors.New("busrpc: caller is closed")
)

// Classification errors. Persistence collaborators wrap these (or return them
// directly) so the dispatcher can fold handler failures into the reply
// taxonomy without inspecting storage-specific error types.
var (
	ErrNotFound       = sterrors.New("busrpc: entity not found")
	ErrConflict       = sterrors.New("busrpc: uniqueness or reference constraint violated")
	ErrInvalidPayload = sterrors.New("busrpc: request payload is invalid")
	ErrFatal          = sterrors.New("busrpc: unrecoverable handler failure")
)
