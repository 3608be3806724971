package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImageName = "d2a84f4b8b650937ec8f73cd8be2c74add5a911ba64df27458ed8229da804a26.png"

func newPendingArtifact(t *testing.T) *CaptureArtifact {
	t.Helper()
	a, err := NewCaptureArtifact(1, "JJD000390007882823450")
	require.NoError(t, err)
	return a
}

func TestNewCaptureArtifact(t *testing.T) {
	t.Run("starts pending", func(t *testing.T) {
		a := newPendingArtifact(t)
		assert.Equal(t, ArtifactPending, a.Status())
		assert.NotEmpty(t, a.SID())
		assert.Empty(t, a.ImageName())
	})

	t.Run("requires session", func(t *testing.T) {
		_, err := NewCaptureArtifact(0, "JJD000390007882823450")
		assert.Error(t, err)
	})

	t.Run("tracking id may be empty", func(t *testing.T) {
		a, err := NewCaptureArtifact(1, "")
		require.NoError(t, err)
		assert.Empty(t, a.TrackingID())
	})
}

func TestArtifactCaptureThenDeliver(t *testing.T) {
	a := newPendingArtifact(t)

	require.NoError(t, a.MarkCaptured(testImageName))
	assert.Equal(t, ArtifactCaptured, a.Status())
	assert.Equal(t, testImageName, a.ImageName())

	require.NoError(t, a.MarkDelivered())
	assert.Equal(t, ArtifactDelivered, a.Status())
	assert.True(t, a.Status().IsTerminal())

	// Delivered is terminal; no failure afterwards.
	assert.ErrorIs(t, a.MarkFailed("late failure"), ErrInvalidArtifactStatus)
}

func TestArtifactMarkCaptured(t *testing.T) {
	t.Run("requires image name", func(t *testing.T) {
		a := newPendingArtifact(t)
		assert.Error(t, a.MarkCaptured(""))
	})

	t.Run("no capture after failure", func(t *testing.T) {
		a := newPendingArtifact(t)
		require.NoError(t, a.MarkFailed("device unreachable"))
		assert.ErrorIs(t, a.MarkCaptured(testImageName), ErrInvalidArtifactStatus)
	})
}

func TestArtifactMarkFailed(t *testing.T) {
	a := newPendingArtifact(t)

	require.NoError(t, a.MarkFailed("screenshot failed"))
	assert.Equal(t, ArtifactFailed, a.Status())
	assert.Equal(t, "screenshot failed", a.FailReason())

	// Idempotent.
	require.NoError(t, a.MarkFailed("another reason"))
	assert.Equal(t, "screenshot failed", a.FailReason())
}

func TestArtifactDeliverRequiresCapture(t *testing.T) {
	a := newPendingArtifact(t)
	assert.ErrorIs(t, a.MarkDelivered(), ErrInvalidArtifactStatus)
}
