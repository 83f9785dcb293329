package errors

import (
	sterrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsCarryModulePrefix(t *testing.T) {
	for _, err := range []error{
		ErrConfigRequired,
		ErrQueueRequired,
		ErrKindRequired,
		ErrRoutingKeyRequired,
		ErrHandlerRequired,
		ErrKindAlreadyBound,
		ErrNotFound,
		ErrConflict,
		ErrInvalidPayload,
		ErrFatal,
	} {
		assert.Contains(t, err.Error(), "busrpc: ")
	}
}

func TestClassificationSentinelsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("find order 42: %w", ErrNotFound)
	assert.True(t, sterrors.Is(wrapped, ErrNotFound))
	assert.False(t, sterrors.Is(wrapped, ErrConflict))
}
