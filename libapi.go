package busrpc

import (
	runtimepkg "github.com/kvale/busrpc/internal/runtime"
	configpkg "github.com/kvale/busrpc/internal/runtime/config"
	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
	idspkg "github.com/kvale/busrpc/internal/runtime/ids"
	jsoncodec "github.com/kvale/busrpc/internal/runtime/jsoncodec"
	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

type (
	Config = configpkg.Config

	Caller  = runtimepkg.Caller
	Request = runtimepkg.Request

	Worker             = runtimepkg.Worker
	WorkerDependencies = runtimepkg.WorkerDependencies
	Scope              = runtimepkg.Scope
	ScopeFactory       = runtimepkg.ScopeFactory
	TimeoutPolicy      = runtimepkg.TimeoutPolicy

	TypedHandler[T any]        = runtimepkg.TypedHandler[T]
	HandlerRegistration[T any] = runtimepkg.HandlerRegistration[T]

	// Reply envelope
	Response  = envelope.Response
	Error     = envelope.Error
	ErrorKind = envelope.ErrorKind

	// Error classification
	ErrorClassifier = runtimepkg.ErrorClassifier

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
)

var (
	NewCaller      = runtimepkg.NewCaller
	NewWorker      = runtimepkg.NewWorker
	ValidateConfig = configpkg.ValidateConfig

	// Reply envelope constructors
	OK       = envelope.OK
	Created  = envelope.Created
	WithData = envelope.WithData
	Failure  = envelope.Failure

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Decode    = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrWorkerRequired     = errspkg.ErrWorkerRequired
	ErrQueueRequired      = errspkg.ErrQueueRequired
	ErrKindRequired       = errspkg.ErrKindRequired
	ErrRoutingKeyRequired = errspkg.ErrRoutingKeyRequired
	ErrHandlerRequired    = errspkg.ErrHandlerRequired
	ErrKindAlreadyBound   = errspkg.ErrKindAlreadyBound
	ErrCallerClosed       = errspkg.ErrCallerClosed

	// Classification sentinels for handler and repository errors
	ErrNotFound       = errspkg.ErrNotFound
	ErrConflict       = errspkg.ErrConflict
	ErrInvalidPayload = errspkg.ErrInvalidPayload
	ErrFatal          = errspkg.ErrFatal

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	NewCorrelationID = idspkg.CorrelationID
)

// Reply error kinds.
const (
	KindNotFound             = envelope.KindNotFound
	KindValidation           = envelope.KindValidation
	KindTemporaryUnavailable = envelope.KindTemporaryUnavailable
	KindFatal                = envelope.KindFatal
	KindUnknown              = envelope.KindUnknown
)

func RegisterHandler[T any](w *Worker, reg HandlerRegistration[T]) error {
	return runtimepkg.RegisterHandler(w, reg)
}
