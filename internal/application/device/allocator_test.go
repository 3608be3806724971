package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/domain/device"
	"dropcode/internal/shared/logger"
)

// fakeDeviceRepo is an in-memory device.Repository with the same claim
// guard semantics as the SQL implementation.
type fakeDeviceRepo struct {
	devices map[uint]*device.Device
	nextID  uint
	// racedOnce simulates a concurrent claim winning the listed devices
	// exactly once each.
	racedOnce map[uint]bool
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{
		devices:   make(map[uint]*device.Device),
		nextID:    1,
		racedOnce: make(map[uint]bool),
	}
}

func (r *fakeDeviceRepo) add(t *testing.T, provider, ref, courier, locker string) *device.Device {
	t.Helper()
	now := time.Now()
	d, err := device.ReconstructDevice(
		r.nextID, provider, ref, ref, courier, locker,
		device.StatusAvailable, nil, 1, now, now,
	)
	require.NoError(t, err)
	r.devices[r.nextID] = d
	r.nextID++
	return d
}

func (r *fakeDeviceRepo) Create(ctx context.Context, d *device.Device) error {
	if err := d.SetID(r.nextID); err != nil {
		return err
	}
	r.devices[r.nextID] = d
	r.nextID++
	return nil
}

func (r *fakeDeviceRepo) Update(ctx context.Context, d *device.Device) error {
	r.devices[d.ID()] = d
	return nil
}

func (r *fakeDeviceRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := r.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *fakeDeviceRepo) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d, nil
}

func (r *fakeDeviceRepo) GetByProviderRef(ctx context.Context, provider, providerDeviceID string) (*device.Device, error) {
	for _, d := range r.devices {
		if d.Provider() == provider && d.ProviderDeviceID() == providerDeviceID {
			return d, nil
		}
	}
	return nil, device.ErrDeviceNotFound
}

func (r *fakeDeviceRepo) List(ctx context.Context, page, pageSize int) ([]*device.Device, int64, error) {
	var out []*device.Device
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (r *fakeDeviceRepo) ListAvailable(ctx context.Context) ([]*device.Device, error) {
	var withIdentity, without []*device.Device
	for i := uint(1); i < r.nextID; i++ {
		d, ok := r.devices[i]
		if !ok || d.Status() != device.StatusAvailable {
			continue
		}
		if d.HasDeliveryIdentity() {
			withIdentity = append(withIdentity, d)
		} else {
			without = append(without, d)
		}
	}
	return append(withIdentity, without...), nil
}

func (r *fakeDeviceRepo) Claim(ctx context.Context, id uint) error {
	if r.racedOnce[id] {
		delete(r.racedOnce, id)
		return device.ErrDeviceNotAvailable
	}
	d, ok := r.devices[id]
	if !ok || d.Status() != device.StatusAvailable {
		return device.ErrDeviceNotAvailable
	}
	return d.MarkInUse()
}

func newTestAllocator(repo *fakeDeviceRepo) *Allocator {
	return NewAllocator(repo, devicegateway.NewRegistry(), logger.NewLogger())
}

func TestAllocatorAssign(t *testing.T) {
	t.Run("prefers devices with a delivery identity", func(t *testing.T) {
		repo := newFakeDeviceRepo()
		repo.add(t, "skyfone", "sf-1", "", "")
		preferred := repo.add(t, "skyfone", "sf-2", "DHL", "L-1")

		d, err := newTestAllocator(repo).Assign(context.Background())
		require.NoError(t, err)
		assert.Equal(t, preferred.ID(), d.ID())
		assert.Equal(t, device.StatusInUse, d.Status())
	})

	t.Run("empty pool", func(t *testing.T) {
		repo := newFakeDeviceRepo()

		_, err := newTestAllocator(repo).Assign(context.Background())
		assert.ErrorIs(t, err, device.ErrNoDeviceAvailable)
	})

	t.Run("raced candidate falls through to the next", func(t *testing.T) {
		repo := newFakeDeviceRepo()
		first := repo.add(t, "skyfone", "sf-1", "DHL", "L-1")
		second := repo.add(t, "skyfone", "sf-2", "DHL", "L-2")
		repo.racedOnce[first.ID()] = true

		d, err := newTestAllocator(repo).Assign(context.Background())
		require.NoError(t, err)
		assert.Equal(t, second.ID(), d.ID())
	})

	t.Run("every candidate raced away", func(t *testing.T) {
		repo := newFakeDeviceRepo()
		only := repo.add(t, "skyfone", "sf-1", "", "")
		repo.racedOnce[only.ID()] = true

		_, err := newTestAllocator(repo).Assign(context.Background())
		assert.ErrorIs(t, err, device.ErrNoDeviceAvailable)
	})
}

func TestAllocatorRelease(t *testing.T) {
	repo := newFakeDeviceRepo()
	d := repo.add(t, "skyfone", "sf-1", "", "")
	alloc := newTestAllocator(repo)

	claimed, err := alloc.Assign(context.Background())
	require.NoError(t, err)
	require.Equal(t, d.ID(), claimed.ID())

	require.NoError(t, alloc.Release(context.Background(), d.ID()))
	assert.Equal(t, device.StatusAvailable, repo.devices[d.ID()].Status())

	// Releasing twice is a no-op.
	require.NoError(t, alloc.Release(context.Background(), d.ID()))
}

func TestAllocatorMarkStatus(t *testing.T) {
	repo := newFakeDeviceRepo()
	d := repo.add(t, "skyfone", "sf-1", "", "")
	alloc := newTestAllocator(repo)

	require.NoError(t, alloc.MarkStatus(context.Background(), d.ID(), device.StatusMaintenance))
	assert.Equal(t, device.StatusMaintenance, repo.devices[d.ID()].Status())

	err := alloc.MarkStatus(context.Background(), d.ID(), device.StatusInUse)
	assert.ErrorIs(t, err, device.ErrInvalidStatusTransition)
}

// listingAdapter serves a fixed inventory for sync tests.
type listingAdapter struct {
	name  string
	infos []devicegateway.DeviceInfo
}

func (a *listingAdapter) Name() string { return a.name }
func (a *listingAdapter) ListDevices(ctx context.Context) []devicegateway.DeviceInfo {
	return a.infos
}
func (a *listingAdapter) GetDeviceStatus(ctx context.Context, deviceID string) devicegateway.StatusResult {
	return devicegateway.StatusResult{}
}
func (a *listingAdapter) StartDevice(ctx context.Context, deviceID string) bool { return false }
func (a *listingAdapter) StopDevice(ctx context.Context, deviceID string) bool  { return false }
func (a *listingAdapter) LaunchApp(ctx context.Context, deviceID, packageID string) bool {
	return false
}
func (a *listingAdapter) TakeScreenshot(ctx context.Context, deviceID string) (*devicegateway.Screenshot, error) {
	return nil, nil
}
func (a *listingAdapter) ExecuteCommand(ctx context.Context, deviceID, command string) (string, error) {
	return "", nil
}

func TestAllocatorSyncFromProviders(t *testing.T) {
	repo := newFakeDeviceRepo()
	known := repo.add(t, "skyfone", "sf-known", "", "")
	inUse := repo.add(t, "skyfone", "sf-busy", "", "")
	require.NoError(t, inUse.MarkInUse())

	registry := devicegateway.NewRegistry()
	registry.Register(&listingAdapter{
		name: "skyfone",
		infos: []devicegateway.DeviceInfo{
			{ID: "sf-known", Name: "Known", Status: devicegateway.StatusOffline},
			{ID: "sf-busy", Name: "Busy", Status: devicegateway.StatusOffline},
			{ID: "sf-new", Name: "Fresh", Status: devicegateway.StatusOnline},
		},
	})
	alloc := NewAllocator(repo, registry, logger.NewLogger())

	alloc.SyncFromProviders(context.Background())

	// Known offline device gets flagged.
	assert.Equal(t, device.StatusOffline, repo.devices[known.ID()].Status())

	// In-use device is untouched even when the provider says offline.
	assert.Equal(t, device.StatusInUse, repo.devices[inUse.ID()].Status())

	// Unseen device gets registered.
	fresh, err := repo.GetByProviderRef(context.Background(), "skyfone", "sf-new")
	require.NoError(t, err)
	assert.Equal(t, device.StatusAvailable, fresh.Status())
}
