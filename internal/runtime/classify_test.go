package runtime

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
)

func TestDefaultErrorClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want envelope.ErrorKind
	}{
		{name: "not found", err: errspkg.ErrNotFound, want: envelope.KindNotFound},
		{name: "wrapped not found", err: fmt.Errorf("load order 9: %w", errspkg.ErrNotFound), want: envelope.KindNotFound},
		{name: "conflict", err: errspkg.ErrConflict, want: envelope.KindValidation},
		{name: "invalid payload", err: errspkg.ErrInvalidPayload, want: envelope.KindValidation},
		{name: "fatal", err: fmt.Errorf("apply migration: %w", errspkg.ErrFatal), want: envelope.KindFatal},
		{name: "unclassified", err: errors.New("disk on fire"), want: envelope.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultErrorClassifier(tt.err))
		})
	}
}
