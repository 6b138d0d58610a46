package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusInProcess},
		{StatusPending, StatusCancelled},
		{StatusInProcess, StatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCompleted},   // no skipping preparation
		{StatusInProcess, StatusCancelled}, // ingredients are already consumed
		{StatusInProcess, StatusPending},
		{StatusCompleted, StatusInProcess},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusCompleted},
		{StatusPending, StatusPending},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProcess, StatusCompleted, StatusCancelled} {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("Shipped")
	assert.Error(t, err)
	_, err = ParseStatus("pending") // case matters
	assert.Error(t, err)
}
