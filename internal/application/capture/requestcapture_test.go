package capture

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdevice "dropcode/internal/application/device"
	appsession "dropcode/internal/application/session"
	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/session"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

type memSubscriptionRepo struct {
	subs   map[uint]*subscription.Subscription
	nextID uint
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[uint]*subscription.Subscription), nextID: 1}
}

func (r *memSubscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	if err := s.SetID(r.nextID); err != nil {
		return err
	}
	r.subs[r.nextID] = s
	r.nextID++
	return nil
}

func (r *memSubscriptionRepo) Update(ctx context.Context, s *subscription.Subscription) error {
	r.subs[s.ID()] = s
	return nil
}

func (r *memSubscriptionRepo) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	s, ok := r.subs[id]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return s, nil
}

func (r *memSubscriptionRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*subscription.Subscription, error) {
	return nil, subscription.ErrSubscriptionNotFound
}

func (r *memSubscriptionRepo) List(ctx context.Context, page, pageSize int) ([]*subscription.Subscription, int64, error) {
	return nil, 0, nil
}

func (r *memSubscriptionRepo) GetPendingByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	return nil, subscription.ErrSubscriptionNotFound
}

func (r *memSubscriptionRepo) GetActiveByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	for _, s := range r.subs {
		if s.CustomerID() == customerID && s.IsCurrentlyValid() {
			return s, nil
		}
	}
	return nil, subscription.ErrNoActiveSubscription
}

func (r *memSubscriptionRepo) ListExpiredActive(ctx context.Context) ([]*subscription.Subscription, error) {
	return nil, nil
}

func (r *memSubscriptionRepo) ListStalePending(ctx context.Context, olderThanSeconds int) ([]*subscription.Subscription, error) {
	return nil, nil
}

// --- fixture ---

type requestFixture struct {
	uc          *RequestCaptureUseCase
	sessionRepo *memSessionRepo
	deviceRepo  *memDeviceRepo
	subRepo     *memSubscriptionRepo
	allocator   *appdevice.Allocator
	sub         *subscription.Subscription
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()

	registry := devicegateway.NewRegistry()
	registry.Register(&fakeAdapter{statuses: []devicegateway.StatusResult{online()}})
	orchestrator := NewOrchestrator(registry, "de.shippingapp.android", 0, 0, logger.NewLogger())

	now := time.Now()
	cust, err := customer.ReconstructCustomer(7, 123456789, false, 0, customer.AwaitingNone, nil, 1, now, now)
	require.NoError(t, err)
	customerRepo := &memCustomerRepo{customers: map[uint]*customer.Customer{7: cust}}

	sessionRepo := newMemSessionRepo()
	artifactRepo := newMemArtifactRepo()
	deviceRepo := &memDeviceRepo{devices: make(map[uint]*device.Device)}
	subRepo := newMemSubscriptionRepo()

	sub, err := subscription.NewSubscription(7, 1, "crypto", "inv-1", "USDT", "27.17")
	require.NoError(t, err)
	require.NoError(t, sub.Activate(now.UTC(), 30))
	require.NoError(t, subRepo.Create(context.Background(), sub))

	allocator := appdevice.NewAllocator(deviceRepo, registry, logger.NewLogger())
	tracker := appsession.NewTracker(sessionRepo, allocator, logger.NewLogger())
	worker := NewWorker(
		orchestrator, tracker, sessionRepo, artifactRepo, customerRepo,
		&memImages{}, &memNotifier{}, 4, time.Minute, logger.NewLogger(),
	)

	uc := NewRequestCaptureUseCase(
		customerRepo, subRepo, deviceRepo, allocator, tracker,
		artifactRepo, worker, 30, logger.NewLogger(),
	)

	return &requestFixture{
		uc:          uc,
		sessionRepo: sessionRepo,
		deviceRepo:  deviceRepo,
		subRepo:     subRepo,
		allocator:   allocator,
		sub:         sub,
	}
}

func (fx *requestFixture) addDevice(t *testing.T, id uint, status device.Status) *device.Device {
	t.Helper()
	now := time.Now()
	d, err := device.ReconstructDevice(
		id, "fake", fmt.Sprintf("d%d", id), "Phone", "DHL", fmt.Sprintf("L-%d", id),
		status, nil, 1, now, now,
	)
	require.NoError(t, err)
	fx.deviceRepo.devices[id] = d
	return d
}

func TestRequestCaptureClaimsBoundDevice(t *testing.T) {
	fx := newRequestFixture(t)
	fx.addDevice(t, 1, device.StatusAvailable)
	require.NoError(t, fx.sub.AssignDevice(1))

	result, err := fx.uc.Execute(context.Background(), RequestCaptureCommand{TelegramID: 123456789, TrackingID: "JJD0003"})
	require.NoError(t, err)

	assert.Equal(t, uint(1), result.Device.ID())
	assert.Equal(t, session.StatusActive, result.Session.Status())
	// The bound device went through the claim guard, not straight into
	// the session: while the session runs it is in_use and the allocator
	// cannot hand it to anyone else.
	assert.Equal(t, device.StatusInUse, fx.deviceRepo.devices[1].Status())
	_, err = fx.allocator.Assign(context.Background())
	assert.ErrorIs(t, err, device.ErrNoDeviceAvailable)
}

func TestRequestCaptureReassignsWhenBoundDeviceBusy(t *testing.T) {
	fx := newRequestFixture(t)
	// The bound device is serving someone else; a fresh one is free.
	fx.addDevice(t, 1, device.StatusInUse)
	fx.addDevice(t, 2, device.StatusAvailable)
	require.NoError(t, fx.sub.AssignDevice(1))

	result, err := fx.uc.Execute(context.Background(), RequestCaptureCommand{TelegramID: 123456789})
	require.NoError(t, err)

	assert.Equal(t, uint(2), result.Device.ID())
	assert.Equal(t, device.StatusInUse, fx.deviceRepo.devices[2].Status())
	// The new binding sticks for the next request.
	require.NotNil(t, fx.sub.DeviceID())
	assert.Equal(t, uint(2), *fx.sub.DeviceID())
}

func TestRequestCaptureNoDeviceLeavesNoSession(t *testing.T) {
	fx := newRequestFixture(t)
	fx.addDevice(t, 1, device.StatusInUse)
	require.NoError(t, fx.sub.AssignDevice(1))

	_, err := fx.uc.Execute(context.Background(), RequestCaptureCommand{TelegramID: 123456789})
	assert.ErrorIs(t, err, device.ErrNoDeviceAvailable)

	_, err = fx.sessionRepo.GetLiveByCustomer(context.Background(), 7)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
