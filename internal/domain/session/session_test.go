package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingSession(t *testing.T) *RentalSession {
	t.Helper()
	s, err := NewRentalSession(7, 30)
	require.NoError(t, err)
	return s
}

func newActiveSession(t *testing.T) *RentalSession {
	t.Helper()
	s := newPendingSession(t)
	require.NoError(t, s.Start(42))
	return s
}

func TestNewRentalSession(t *testing.T) {
	t.Run("opens pending with generated sid", func(t *testing.T) {
		s := newPendingSession(t)
		assert.Equal(t, StatusPending, s.Status())
		assert.NotEmpty(t, s.SID())
		assert.Nil(t, s.DeviceID())
		assert.Nil(t, s.ExpiresAt())
	})

	t.Run("requires customer", func(t *testing.T) {
		_, err := NewRentalSession(0, 30)
		assert.Error(t, err)
	})

	t.Run("requires positive duration", func(t *testing.T) {
		_, err := NewRentalSession(7, 0)
		assert.Error(t, err)
	})
}

func TestSessionStart(t *testing.T) {
	s := newPendingSession(t)
	require.NoError(t, s.Start(42))

	assert.Equal(t, StatusActive, s.Status())
	require.NotNil(t, s.DeviceID())
	assert.Equal(t, uint(42), *s.DeviceID())
	require.NotNil(t, s.StartedAt())
	require.NotNil(t, s.ExpiresAt())
	assert.Equal(t, 30*time.Minute, s.ExpiresAt().Sub(*s.StartedAt()))
}

func TestSessionComplete(t *testing.T) {
	s := newActiveSession(t)

	require.NoError(t, s.Complete())
	assert.Equal(t, StatusCompleted, s.Status())
	assert.NotNil(t, s.CompletedAt())

	// Idempotent.
	require.NoError(t, s.Complete())

	// Terminal: no restart.
	assert.ErrorIs(t, s.Start(42), ErrInvalidStatusTransition)
}

func TestSessionCancel(t *testing.T) {
	t.Run("pending can be cancelled", func(t *testing.T) {
		s := newPendingSession(t)
		require.NoError(t, s.Cancel())
		assert.Equal(t, StatusCancelled, s.Status())
	})

	t.Run("active can be cancelled", func(t *testing.T) {
		s := newActiveSession(t)
		require.NoError(t, s.Cancel())
		assert.Equal(t, StatusCancelled, s.Status())
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		s := newActiveSession(t)
		require.NoError(t, s.Complete())
		assert.ErrorIs(t, s.Cancel(), ErrInvalidStatusTransition)
	})
}

func TestSessionIsLogicallyExpired(t *testing.T) {
	t.Run("pending never expires logically", func(t *testing.T) {
		s := newPendingSession(t)
		assert.False(t, s.IsLogicallyExpired())
	})

	t.Run("fresh active session not expired", func(t *testing.T) {
		s := newActiveSession(t)
		assert.False(t, s.IsLogicallyExpired())
	})

	t.Run("active past expires_at is expired", func(t *testing.T) {
		started := time.Now().Add(-2 * time.Hour)
		expires := started.Add(30 * time.Minute)
		deviceID := uint(42)
		s, err := ReconstructRentalSession(
			1, "ses_expired01", 7, &deviceID, StatusActive, 30,
			&started, &expires, nil, 1, started, started,
		)
		require.NoError(t, err)
		assert.True(t, s.IsLogicallyExpired())

		require.NoError(t, s.MarkExpired())
		assert.Equal(t, StatusExpired, s.Status())
		assert.False(t, s.IsLogicallyExpired())
	})
}
