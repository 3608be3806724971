package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/session"
	"dropcode/internal/shared/logger"
)

type fakeSessionRepo struct {
	sessions map[uint]*session.RentalSession
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint]*session.RentalSession), nextID: 1}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *session.RentalSession) error {
	if err := s.SetID(r.nextID); err != nil {
		return err
	}
	r.sessions[r.nextID] = s
	r.nextID++
	return nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, s *session.RentalSession) error {
	r.sessions[s.ID()] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, dbID uint) (*session.RentalSession, error) {
	s, ok := r.sessions[dbID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) GetBySID(ctx context.Context, sid string) (*session.RentalSession, error) {
	for _, s := range r.sessions {
		if s.SID() == sid {
			return s, nil
		}
	}
	return nil, session.ErrSessionNotFound
}

func (r *fakeSessionRepo) List(ctx context.Context, page, pageSize int) ([]*session.RentalSession, int64, error) {
	var out []*session.RentalSession
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSessionRepo) GetLiveByCustomer(ctx context.Context, customerID uint) (*session.RentalSession, error) {
	for _, s := range r.sessions {
		if s.CustomerID() == customerID && !s.Status().IsTerminal() {
			return s, nil
		}
	}
	return nil, session.ErrSessionNotFound
}

func (r *fakeSessionRepo) GetLiveByDevice(ctx context.Context, deviceID uint) (*session.RentalSession, error) {
	for _, s := range r.sessions {
		if s.DeviceID() != nil && *s.DeviceID() == deviceID && !s.Status().IsTerminal() {
			return s, nil
		}
	}
	return nil, session.ErrSessionNotFound
}

func (r *fakeSessionRepo) ListExpiredActive(ctx context.Context) ([]*session.RentalSession, error) {
	var out []*session.RentalSession
	for _, s := range r.sessions {
		if s.IsLogicallyExpired() {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeDeviceRepo struct {
	devices map[uint]*device.Device
}

func (r *fakeDeviceRepo) Create(ctx context.Context, d *device.Device) error { return nil }
func (r *fakeDeviceRepo) Update(ctx context.Context, d *device.Device) error {
	r.devices[d.ID()] = d
	return nil
}
func (r *fakeDeviceRepo) Delete(ctx context.Context, id uint) error { return nil }
func (r *fakeDeviceRepo) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}
func (r *fakeDeviceRepo) GetByProviderRef(ctx context.Context, provider, providerDeviceID string) (*device.Device, error) {
	return nil, device.ErrDeviceNotFound
}
func (r *fakeDeviceRepo) List(ctx context.Context, page, pageSize int) ([]*device.Device, int64, error) {
	return nil, 0, nil
}
func (r *fakeDeviceRepo) ListAvailable(ctx context.Context) ([]*device.Device, error) {
	return nil, nil
}
func (r *fakeDeviceRepo) Claim(ctx context.Context, id uint) error {
	return device.ErrDeviceNotAvailable
}

func inUseDevice(t *testing.T, id uint) *device.Device {
	t.Helper()
	now := time.Now()
	d, err := device.ReconstructDevice(
		id, "skyfone", "sf-1", "Phone", "", "",
		device.StatusInUse, &now, 1, now, now,
	)
	require.NoError(t, err)
	return d
}

func newTestTracker(repo *fakeSessionRepo, devices map[uint]*device.Device) *Tracker {
	if devices == nil {
		devices = make(map[uint]*device.Device)
	}
	allocator := appdevice.NewAllocator(&fakeDeviceRepo{devices: devices}, devicegateway.NewRegistry(), logger.NewLogger())
	return NewTracker(repo, allocator, logger.NewLogger())
}

func TestTrackerOpen(t *testing.T) {
	t.Run("opens a pending session", func(t *testing.T) {
		tracker := newTestTracker(newFakeSessionRepo(), nil)

		s, err := tracker.Open(context.Background(), 7, 30)
		require.NoError(t, err)
		assert.Equal(t, session.StatusPending, s.Status())
	})

	t.Run("live session blocks a second open", func(t *testing.T) {
		repo := newFakeSessionRepo()
		tracker := newTestTracker(repo, nil)

		first, err := tracker.Open(context.Background(), 7, 30)
		require.NoError(t, err)
		require.NoError(t, tracker.Start(context.Background(), first, 1))

		_, err = tracker.Open(context.Background(), 7, 30)
		assert.ErrorIs(t, err, session.ErrSessionAlreadyActive)
	})

	t.Run("logically expired session is retired inline", func(t *testing.T) {
		repo := newFakeSessionRepo()
		started := time.Now().Add(-2 * time.Hour)
		expires := started.Add(30 * time.Minute)
		deviceID := uint(1)
		stale, err := session.ReconstructRentalSession(
			1, "ses_stale0001", 7, &deviceID, session.StatusActive, 30,
			&started, &expires, nil, 1, started, started,
		)
		require.NoError(t, err)
		repo.sessions[1] = stale
		repo.nextID = 2

		devices := map[uint]*device.Device{1: inUseDevice(t, 1)}
		tracker := newTestTracker(repo, devices)

		s, err := tracker.Open(context.Background(), 7, 30)
		require.NoError(t, err)
		assert.Equal(t, session.StatusPending, s.Status())
		assert.Equal(t, session.StatusExpired, stale.Status())
		assert.Equal(t, device.StatusAvailable, devices[1].Status())
	})
}

func TestTrackerCompleteReleasesDevice(t *testing.T) {
	repo := newFakeSessionRepo()
	devices := map[uint]*device.Device{1: inUseDevice(t, 1)}
	tracker := newTestTracker(repo, devices)

	s, err := tracker.Open(context.Background(), 7, 30)
	require.NoError(t, err)
	require.NoError(t, tracker.Start(context.Background(), s, 1))

	require.NoError(t, tracker.Complete(context.Background(), s))
	assert.Equal(t, session.StatusCompleted, s.Status())
	assert.Equal(t, device.StatusAvailable, devices[1].Status())
}

func TestTrackerCancel(t *testing.T) {
	repo := newFakeSessionRepo()
	devices := map[uint]*device.Device{1: inUseDevice(t, 1)}
	tracker := newTestTracker(repo, devices)

	s, err := tracker.Open(context.Background(), 7, 30)
	require.NoError(t, err)
	require.NoError(t, tracker.Start(context.Background(), s, 1))

	cancelled, err := tracker.Cancel(context.Background(), s.SID())
	require.NoError(t, err)
	assert.Equal(t, session.StatusCancelled, cancelled.Status())
	assert.Equal(t, device.StatusAvailable, devices[1].Status())

	t.Run("unknown sid", func(t *testing.T) {
		_, err := tracker.Cancel(context.Background(), "ses_nope")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestTrackerSweepExpired(t *testing.T) {
	repo := newFakeSessionRepo()
	started := time.Now().Add(-2 * time.Hour)
	expires := started.Add(30 * time.Minute)
	deviceID := uint(1)
	stale, err := session.ReconstructRentalSession(
		1, "ses_stale0001", 7, &deviceID, session.StatusActive, 30,
		&started, &expires, nil, 1, started, started,
	)
	require.NoError(t, err)
	repo.sessions[1] = stale
	repo.nextID = 2

	devices := map[uint]*device.Device{1: inUseDevice(t, 1)}
	tracker := newTestTracker(repo, devices)

	tracker.SweepExpired(context.Background())

	assert.Equal(t, session.StatusExpired, stale.Status())
	assert.Equal(t, device.StatusAvailable, devices[1].Status())
}
