// Package envelope defines the reply body exchanged between workers and
// callers, and its JSON codec. Every reply, success or failure, has the same
// shape; the error kind is the only discriminator callers ever see.
package envelope

import (
	"encoding/json"

	"github.com/kvale/busrpc/internal/runtime/jsoncodec"
)

// ErrorKind is the closed taxonomy of reply failures.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindValidation           ErrorKind = "VALIDATION"
	KindTemporaryUnavailable ErrorKind = "TEMPORARY_UNAVAILABLE"
	KindFatal                ErrorKind = "FATAL"
	KindUnknown              ErrorKind = "UNKNOWN"
)

// Error describes a failed operation.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Response is the wire reply format. On success at most one of Data and
// CreatedID is meaningful; Error is present only when Success is false.
// A minimal {"success":true} body is valid and means "no data, no error".
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedID *int64          `json:"created_id,omitempty"`
	Error     *Error          `json:"error,omitempty"`
}

// OK returns an empty success response.
func OK() Response {
	return Response{Success: true}
}

// Created returns a success response carrying the identifier of a newly
// created entity.
func Created(id int64) Response {
	return Response{Success: true, CreatedID: &id}
}

// WithData marshals v into a success response's typed payload.
func WithData(v any) (Response, error) {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Data: data}, nil
}

// Failure returns an error response of the given kind.
func Failure(kind ErrorKind, message string) Response {
	return Response{Success: false, Error: &Error{Kind: kind, Message: message}}
}

// DecodeData unmarshals the typed payload into v.
func (r Response) DecodeData(v any) error {
	return jsoncodec.Unmarshal(r.Data, v)
}

// Encode serializes the response for publishing.
func Encode(r Response) ([]byte, error) {
	return jsoncodec.Marshal(r)
}

// Decode parses a reply body. Absent optional fields decode to their zero
// values.
func Decode(data []byte) (Response, error) {
	var r Response
	if err := jsoncodec.Unmarshal(data, &r); err != nil {
		return Response{}, err
	}
	return r, nil
}
