package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoolDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice("skyfone", "sf-1001", "Phone A")
	require.NoError(t, err)
	return d
}

func TestNewDevice(t *testing.T) {
	t.Run("starts available", func(t *testing.T) {
		d := newPoolDevice(t)
		assert.Equal(t, StatusAvailable, d.Status())
		assert.False(t, d.HasDeliveryIdentity())
		assert.Nil(t, d.LastUsedAt())
	})

	t.Run("requires provider", func(t *testing.T) {
		_, err := NewDevice("", "sf-1001", "Phone A")
		assert.Error(t, err)
	})

	t.Run("requires provider device id", func(t *testing.T) {
		_, err := NewDevice("skyfone", "", "Phone A")
		assert.Error(t, err)
	})
}

func TestDeviceDeliveryIdentity(t *testing.T) {
	d := newPoolDevice(t)

	d.SetDeliveryIdentity("DHL", "L-4471")
	assert.True(t, d.HasDeliveryIdentity())
	assert.Equal(t, "DHL", d.CourierName())
	assert.Equal(t, "L-4471", d.LockerCode())

	// Partial identity does not count.
	d.SetDeliveryIdentity("DHL", "")
	assert.False(t, d.HasDeliveryIdentity())
}

func TestDeviceMarkInUse(t *testing.T) {
	d := newPoolDevice(t)

	require.NoError(t, d.MarkInUse())
	assert.Equal(t, StatusInUse, d.Status())
	assert.NotNil(t, d.LastUsedAt())

	// Idempotent.
	require.NoError(t, d.MarkInUse())
	assert.Equal(t, StatusInUse, d.Status())
}

func TestDeviceRelease(t *testing.T) {
	d := newPoolDevice(t)
	require.NoError(t, d.MarkInUse())

	d.Release()
	assert.Equal(t, StatusAvailable, d.Status())

	// Releasing an available device is a no-op.
	d.Release()
	assert.Equal(t, StatusAvailable, d.Status())
}

func TestDeviceStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"available to in_use", StatusAvailable, StatusInUse, true},
		{"available to maintenance", StatusAvailable, StatusMaintenance, true},
		{"in_use to available", StatusInUse, StatusAvailable, true},
		{"maintenance to in_use", StatusMaintenance, StatusInUse, false},
		{"offline to available", StatusOffline, StatusAvailable, true},
		{"offline to in_use", StatusOffline, StatusInUse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDeviceMarkStatus(t *testing.T) {
	d := newPoolDevice(t)

	require.NoError(t, d.MarkStatus(StatusMaintenance))
	assert.Equal(t, StatusMaintenance, d.Status())

	err := d.MarkStatus(StatusInUse)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestStatusCanServeCapture(t *testing.T) {
	assert.True(t, StatusAvailable.CanServeCapture())
	assert.False(t, StatusInUse.CanServeCapture())
	assert.False(t, StatusMaintenance.CanServeCapture())
	assert.False(t, StatusOffline.CanServeCapture())
}
