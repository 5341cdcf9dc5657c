package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelChecks(t *testing.T) {
	wrapped := fmt.Errorf("acquiring token: %w", ErrAuth)
	assert.True(t, IsAuth(wrapped))
	assert.False(t, IsParse(wrapped))

	assert.True(t, IsParse(fmt.Errorf("vtt: %w", ErrParse)))
	assert.True(t, IsPersistence(fmt.Errorf("saving state: %w", ErrPersistence)))
	assert.True(t, IsDuplicateKey(fmt.Errorf("record: %w", ErrDuplicateKey)))
}

func TestUpstreamError(t *testing.T) {
	err := NewUpstreamError("list recordings", 503, true)
	assert.Contains(t, err.Error(), "list recordings")
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "retryable")

	wrapped := fmt.Errorf("fetch window: %w", err)
	ue, ok := AsUpstream(wrapped)
	require.True(t, ok)
	assert.Equal(t, 503, ue.Status)
	assert.True(t, IsRetryable(wrapped))
}

func TestUpstreamErrorPermanent(t *testing.T) {
	err := NewUpstreamError("download", 404, false)
	assert.Contains(t, err.Error(), "permanent")
	assert.False(t, IsRetryable(err))
}
