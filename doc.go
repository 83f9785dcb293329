// Package busrpc layers synchronous request/reply semantics over RabbitMQ.
// A Caller publishes a request to a worker queue, tags it with a ULID
// correlation ID and its own durable reply queue, and blocks until the reply
// arrives or the timeout fires; a Worker consumes a queue with competing
// consumers, dispatches each message to the handler registered for its kind,
// and publishes the reply to the queue the request named.
//
// The protocol is at-least-once end to end. Requests and replies are
// persistent JSON messages on the default exchange; workers run with a
// prefetch of one and never requeue a failed message, so a poison message
// fails exactly once per delivery. A caller that times out synthesizes a
// TEMPORARY_UNAVAILABLE reply locally; whether the worker still executes the
// stale request is the caller's choice via Request.ExecuteIfTimeout.
//
// # Callers
//
// Fill Config with the broker URL and a stable reply queue name, create a
// Caller, and issue Calls from any number of goroutines. Call returns the
// decoded Response; errors are reserved for transport failures surfaced
// synchronously. Notify publishes fire-and-forget messages that produce no
// reply.
//
// # Workers
//
// Create a Worker for one queue, bind each message kind to a typed handler
// with RegisterHandler, then call Run. Handlers receive a fresh Scope per
// delivery (typically a transaction opened by your ScopeFactory) and return a
// Response or an error; errors are folded into the reply taxonomy by the
// ErrorClassifier. Config.ConsumerInstances scales a worker horizontally
// within one process.
//
// Structured logging goes through ServiceLogger (NewSlogServiceLogger wraps a
// *slog.Logger), and Config.MetricsEnabled exposes Prometheus metrics for
// requests, timeouts, and handler latency.
package busrpc
