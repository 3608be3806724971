package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingSubscription(t *testing.T) *Subscription {
	t.Helper()
	sub, err := NewSubscription(1, 1, "crypto", "inv-1001", "USDT", "21.50")
	require.NoError(t, err)
	return sub
}

func TestNewSubscription(t *testing.T) {
	t.Run("starts pending payment", func(t *testing.T) {
		sub := newPendingSubscription(t)
		assert.Equal(t, StatusPendingPayment, sub.Status())
		assert.Nil(t, sub.PaidAt())
		assert.Nil(t, sub.ExpiresAt())
		assert.False(t, sub.IsCurrentlyValid())
	})

	t.Run("requires invoice id", func(t *testing.T) {
		_, err := NewSubscription(1, 1, "crypto", "", "USDT", "21.50")
		assert.Error(t, err)
	})
}

func TestSubscriptionActivate(t *testing.T) {
	t.Run("stamps paid and expiry window", func(t *testing.T) {
		sub := newPendingSubscription(t)
		paidAt := time.Now().UTC()

		require.NoError(t, sub.Activate(paidAt, 30))

		assert.Equal(t, StatusActive, sub.Status())
		require.NotNil(t, sub.PaidAt())
		assert.Equal(t, paidAt, *sub.PaidAt())
		require.NotNil(t, sub.ExpiresAt())
		assert.Equal(t, paidAt.Add(30*24*time.Hour), *sub.ExpiresAt())
		assert.True(t, sub.IsCurrentlyValid())
	})

	t.Run("duplicate activation is a no-op", func(t *testing.T) {
		sub := newPendingSubscription(t)
		firstPaid := time.Now().UTC()
		require.NoError(t, sub.Activate(firstPaid, 30))
		expiry := *sub.ExpiresAt()

		require.NoError(t, sub.Activate(firstPaid.Add(time.Hour), 30))
		assert.Equal(t, expiry, *sub.ExpiresAt())
	})

	t.Run("cancelled never reactivates", func(t *testing.T) {
		sub := newPendingSubscription(t)
		require.NoError(t, sub.Cancel())

		err := sub.Activate(time.Now().UTC(), 30)
		assert.ErrorIs(t, err, ErrSubscriptionCancelled)
		assert.Equal(t, StatusCancelled, sub.Status())
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		sub := newPendingSubscription(t)
		assert.Error(t, sub.Activate(time.Now().UTC(), 0))
	})
}

func TestSubscriptionCancel(t *testing.T) {
	sub := newPendingSubscription(t)
	require.NoError(t, sub.Activate(time.Now().UTC(), 30))

	require.NoError(t, sub.Cancel())
	assert.Equal(t, StatusCancelled, sub.Status())
	assert.False(t, sub.IsCurrentlyValid())

	// Idempotent.
	require.NoError(t, sub.Cancel())
}

func TestSubscriptionMarkExpired(t *testing.T) {
	sub := newPendingSubscription(t)
	require.NoError(t, sub.Activate(time.Now().UTC(), 30))

	require.NoError(t, sub.MarkExpired())
	assert.Equal(t, StatusExpired, sub.Status())

	// Terminal.
	assert.ErrorIs(t, sub.Cancel(), ErrInvalidStatusTransition)
}

func TestSubscriptionIsCurrentlyValid(t *testing.T) {
	t.Run("active past expiry reads invalid before the sweep", func(t *testing.T) {
		paidAt := time.Now().Add(-40 * 24 * time.Hour)
		expires := paidAt.Add(30 * 24 * time.Hour)
		sub, err := ReconstructSubscription(
			1, 1, 1, nil, StatusActive,
			"crypto", "inv-1001", "USDT", "21.50",
			&paidAt, &paidAt, &expires, nil, 1, paidAt, paidAt,
		)
		require.NoError(t, err)
		assert.False(t, sub.IsCurrentlyValid())
	})
}

func TestSubscriptionDeviceBinding(t *testing.T) {
	sub := newPendingSubscription(t)

	require.NoError(t, sub.AssignDevice(9))
	require.NotNil(t, sub.DeviceID())
	assert.Equal(t, uint(9), *sub.DeviceID())

	sub.UnassignDevice()
	assert.Nil(t, sub.DeviceID())
}

func TestSubscriptionMetadata(t *testing.T) {
	sub := newPendingSubscription(t)
	sub.SetMetadata("cancel_reason", "requested by admin")
	assert.Equal(t, "requested by admin", sub.Metadata()["cancel_reason"])
}
