// Package runtime implements the request/reply protocol on top of the
// broker: the caller-side correlator and reply listener, and the worker-side
// dispatch loop. The exported surface is re-exported by the root busrpc
// package; nothing here is imported directly by applications.
package runtime
