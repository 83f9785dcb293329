package runtime

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Wire-level metadata names. These are part of the cross-process contract
// between callers and workers and must not change.
const (
	// HeaderTimeoutSeconds carries the caller's declared timeout so the
	// worker can evaluate staleness against the publish timestamp.
	HeaderTimeoutSeconds = "timeout_seconds"

	// HeaderExecuteIfTimeout tells the worker whether a request that arrives
	// past its timeout should still execute (with its reply suppressed) or be
	// discarded outright.
	HeaderExecuteIfTimeout = "execute_if_timeout"

	contentTypeJSON = "application/json"
)

// declaredTimeout reads the timeout header. AMQP field tables surface
// integers with varying widths depending on the publishing client, so every
// signed width is accepted. Zero means "not declared".
func declaredTimeout(headers amqp.Table) time.Duration {
	if headers == nil {
		return 0
	}
	switch v := headers[HeaderTimeoutSeconds].(type) {
	case int:
		return time.Duration(v) * time.Second
	case int8:
		return time.Duration(v) * time.Second
	case int16:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return 0
	}
}

// executeIfTimeout reads the execute-if-timeout flag, defaulting to false.
func executeIfTimeout(headers amqp.Table) bool {
	if headers == nil {
		return false
	}
	v, _ := headers[HeaderExecuteIfTimeout].(bool)
	return v
}
