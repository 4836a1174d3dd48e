package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrSourceUnavailable, "fetching page 3")

	assert.Contains(t, wrapped.Error(), "fetching page 3")
	assert.True(t, Is(wrapped, ErrSourceUnavailable))
	assert.False(t, Is(wrapped, ErrStoreWrite))
}

func TestIsSourceUnavailable(t *testing.T) {
	assert.False(t, IsSourceUnavailable(nil))
	assert.False(t, IsSourceUnavailable(New("other")))
	assert.True(t, IsSourceUnavailable(Wrapf(ErrSourceUnavailable, "timeout after %ds", 30)))
}

func TestIsNoSnapshot(t *testing.T) {
	assert.False(t, IsNoSnapshot(nil))
	assert.True(t, IsNoSnapshot(Wrap(ErrNoSnapshot, "query rejected")))
}

func TestNewInvalidRequestError(t *testing.T) {
	err := NewInvalidRequestError("bad limit %d", -1)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "bad limit -1")
	assert.True(t, Is(err, ErrInvalidRequest))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrSourceUnavailable,
		ErrStoreWrite,
		ErrNoSnapshot,
		ErrSchemaMissing,
		ErrNotFound,
		ErrInvalidRequest,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "sentinel %d should not match sentinel %d", i, j)
		}
	}
}
