package usecases

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/application/payment/gateway"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

// --- fakes ---

type fakeSubscriptionRepo struct {
	subs   map[uint]*subscription.Subscription
	nextID uint
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[uint]*subscription.Subscription), nextID: 1}
}

func (r *fakeSubscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	if err := s.SetID(r.nextID); err != nil {
		return err
	}
	r.subs[r.nextID] = s
	r.nextID++
	return nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, s *subscription.Subscription) error {
	r.subs[s.ID()] = s
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	s, ok := r.subs[id]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return s, nil
}

func (r *fakeSubscriptionRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*subscription.Subscription, error) {
	for _, s := range r.subs {
		if s.InvoiceID() == invoiceID {
			return s, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) List(ctx context.Context, page, pageSize int) ([]*subscription.Subscription, int64, error) {
	var out []*subscription.Subscription
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSubscriptionRepo) GetPendingByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	for _, s := range r.subs {
		if s.CustomerID() == customerID && s.Status() == subscription.StatusPendingPayment {
			return s, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) GetActiveByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	for _, s := range r.subs {
		if s.CustomerID() == customerID && s.IsCurrentlyValid() {
			return s, nil
		}
	}
	return nil, subscription.ErrNoActiveSubscription
}

func (r *fakeSubscriptionRepo) ListExpiredActive(ctx context.Context) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	for _, s := range r.subs {
		if s.Status() == subscription.StatusActive && s.ExpiresAt() != nil && s.ExpiresAt().Before(time.Now()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) ListStalePending(ctx context.Context, olderThanSeconds int) ([]*subscription.Subscription, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)
	var out []*subscription.Subscription
	for _, s := range r.subs {
		if s.Status() == subscription.StatusPendingPayment && s.CreatedAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePlanRepo struct {
	plans map[uint]*subscription.Plan
}

func (r *fakePlanRepo) Create(ctx context.Context, p *subscription.Plan) error { return nil }
func (r *fakePlanRepo) Update(ctx context.Context, p *subscription.Plan) error { return nil }
func (r *fakePlanRepo) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, subscription.ErrPlanNotFound
	}
	return p, nil
}
func (r *fakePlanRepo) ListActive(ctx context.Context) ([]*subscription.Plan, error) { return nil, nil }

type fakeProcessor struct {
	createErr  error
	lastCreate gateway.CreateInvoiceRequest
}

func (p *fakeProcessor) CreateInvoice(ctx context.Context, req gateway.CreateInvoiceRequest) (*gateway.Invoice, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.lastCreate = req
	return &gateway.Invoice{
		ID:     "inv-9001",
		Status: gateway.InvoiceActive,
		Asset:  req.Asset,
		Amount: req.Amount,
		PayURL: "https://pay.example.com/inv-9001",
	}, nil
}

func (p *fakeProcessor) GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProcessor) GetExchangeRates(ctx context.Context) ([]gateway.ExchangeRate, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProcessor) VerifyWebhook(req *http.Request) (*gateway.WebhookEvent, error) {
	return nil, errors.New("not implemented")
}

type fakeRateSource struct {
	rates []gateway.ExchangeRate
	err   error
}

func (r *fakeRateSource) GetRates(ctx context.Context) ([]gateway.ExchangeRate, error) {
	return r.rates, r.err
}

// fakeDeviceRepo backs the allocator. Only the claim path matters here.
type fakeDeviceRepo struct {
	devices map[uint]*device.Device
	nextID  uint
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uint]*device.Device), nextID: 1}
}

func (r *fakeDeviceRepo) addAvailable(t *testing.T) *device.Device {
	t.Helper()
	now := time.Now()
	d, err := device.ReconstructDevice(
		r.nextID, "skyfone", "sf-1", "Phone", "DHL", "L-1",
		device.StatusAvailable, nil, 1, now, now,
	)
	require.NoError(t, err)
	r.devices[r.nextID] = d
	r.nextID++
	return d
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
	var out []*device.Device
	for _, d := range r.devices {
		if d.Status() == device.StatusAvailable {
			out = append(out, d)
		}
	}
	return out, nil
}
func (r *fakeDeviceRepo) Claim(ctx context.Context, id uint) error {
	d, ok := r.devices[id]
	if !ok || d.Status() != device.StatusAvailable {
		return device.ErrDeviceNotAvailable
	}
	return d.MarkInUse()
}

type fakeCustomerRepo struct {
	customers map[uint]*customer.Customer
}

func newFakeCustomerRepo(t *testing.T, ids ...uint) *fakeCustomerRepo {
	t.Helper()
	now := time.Now()
	customers := make(map[uint]*customer.Customer, len(ids))
	for _, id := range ids {
		c, err := customer.ReconstructCustomer(id, int64(id)*1000, false, 0, customer.AwaitingNone, nil, 1, now, now)
		require.NoError(t, err)
		customers[id] = c
	}
	return &fakeCustomerRepo{customers: customers}
}

func (r *fakeCustomerRepo) Create(ctx context.Context, c *customer.Customer) error { return nil }
func (r *fakeCustomerRepo) Update(ctx context.Context, c *customer.Customer) error { return nil }
func (r *fakeCustomerRepo) GetByID(ctx context.Context, id uint) (*customer.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, customer.ErrCustomerNotFound
	}
	return c, nil
}
func (r *fakeCustomerRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*customer.Customer, error) {
	for _, c := range r.customers {
		if c.TelegramID() == telegramID {
			return c, nil
		}
	}
	return nil, customer.ErrCustomerNotFound
}
func (r *fakeCustomerRepo) List(ctx context.Context, page, pageSize int) ([]*customer.Customer, int64, error) {
	return nil, 0, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

// --- helpers ---

func testPlan(t *testing.T, id uint) *subscription.Plan {
	t.Helper()
	now := time.Now()
	p, err := subscription.ReconstructPlan(id, "Monthly", 30, 2500, true, 0, 1, now, now)
	require.NoError(t, err)
	return p
}

func testAllocator(repo device.Repository) *appdevice.Allocator {
	return appdevice.NewAllocator(repo, devicegateway.NewRegistry(), logger.NewLogger())
}

func pendingSub(t *testing.T, repo *fakeSubscriptionRepo, customerID uint, invoiceID string) *subscription.Subscription {
	t.Helper()
	sub, err := subscription.NewSubscription(customerID, 1, "crypto", invoiceID, "USDT", "27.17")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

// --- CreateSubscriptionUseCase ---

func TestCreateSubscription(t *testing.T) {
	rates := []gateway.ExchangeRate{{Source: "USDT", Target: "EUR", Rate: 0.92, Valid: true}}

	newUC := func(subRepo *fakeSubscriptionRepo, proc *fakeProcessor, rateSrc *fakeRateSource) *CreateSubscriptionUseCase {
		planRepo := &fakePlanRepo{plans: map[uint]*subscription.Plan{1: testPlan(t, 1)}}
		return NewCreateSubscriptionUseCase(subRepo, planRepo, proc, rateSrc, 3600, logger.NewLogger())
	}

	t.Run("creates pending subscription with invoice", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		proc := &fakeProcessor{}
		uc := newUC(subRepo, proc, &fakeRateSource{rates: rates})

		result, err := uc.Execute(context.Background(), CreateSubscriptionCommand{CustomerID: 7, PlanID: 1, Asset: "USDT"})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusPendingPayment, result.Subscription.Status())
		assert.Equal(t, "inv-9001", result.Subscription.InvoiceID())
		assert.Equal(t, "https://pay.example.com/inv-9001", result.PayURL)
		// 25 EUR at 0.92 EUR per USDT.
		assert.Equal(t, "27.17", proc.lastCreate.Amount)
		assert.Equal(t, "7", proc.lastCreate.Payload)
		assert.Equal(t, time.Hour, proc.lastCreate.ExpiresIn)
	})

	t.Run("existing pending blocks a second purchase", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		pendingSub(t, subRepo, 7, "inv-1")
		uc := newUC(subRepo, &fakeProcessor{}, &fakeRateSource{rates: rates})

		_, err := uc.Execute(context.Background(), CreateSubscriptionCommand{CustomerID: 7, PlanID: 1, Asset: "USDT"})
		assert.ErrorIs(t, err, subscription.ErrPendingPaymentExists)
	})

	t.Run("missing rate aborts before any invoice", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		proc := &fakeProcessor{}
		uc := newUC(subRepo, proc, &fakeRateSource{rates: nil})

		_, err := uc.Execute(context.Background(), CreateSubscriptionCommand{CustomerID: 7, PlanID: 1, Asset: "USDT"})
		assert.ErrorIs(t, err, gateway.ErrNoRate)
		assert.Empty(t, proc.lastCreate.Asset)
		assert.Empty(t, subRepo.subs)
	})

	t.Run("processor failure writes no subscription", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		uc := newUC(subRepo, &fakeProcessor{createErr: errors.New("processor down")}, &fakeRateSource{rates: rates})

		_, err := uc.Execute(context.Background(), CreateSubscriptionCommand{CustomerID: 7, PlanID: 1, Asset: "USDT"})
		require.Error(t, err)
		assert.Empty(t, subRepo.subs)
	})

	t.Run("inactive plan rejected", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		plan := testPlan(t, 1)
		plan.Deactivate()
		planRepo := &fakePlanRepo{plans: map[uint]*subscription.Plan{1: plan}}
		uc := NewCreateSubscriptionUseCase(subRepo, planRepo, &fakeProcessor{}, &fakeRateSource{rates: rates}, 3600, logger.NewLogger())

		_, err := uc.Execute(context.Background(), CreateSubscriptionCommand{CustomerID: 7, PlanID: 1, Asset: "USDT"})
		assert.ErrorIs(t, err, subscription.ErrPlanInactive)
	})
}

// --- ActivateSubscriptionUseCase ---

func TestActivateSubscription(t *testing.T) {
	newUC := func(subRepo *fakeSubscriptionRepo, devRepo *fakeDeviceRepo, notifier *fakeNotifier) *ActivateSubscriptionUseCase {
		planRepo := &fakePlanRepo{plans: map[uint]*subscription.Plan{1: testPlan(t, 1)}}
		return NewActivateSubscriptionUseCase(
			subRepo, planRepo, newFakeCustomerRepo(t, 7), testAllocator(devRepo), notifier, logger.NewLogger())
	}

	t.Run("activates and assigns a device", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		pendingSub(t, subRepo, 7, "inv-1")
		devRepo := newFakeDeviceRepo()
		devRepo.addAvailable(t)
		notifier := &fakeNotifier{}
		uc := newUC(subRepo, devRepo, notifier)

		paidAt := time.Now().UTC()
		result, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-1", PaidAt: paidAt})
		require.NoError(t, err)

		assert.False(t, result.AlreadyActive)
		assert.Equal(t, subscription.StatusActive, result.Subscription.Status())
		require.NotNil(t, result.Subscription.ExpiresAt())
		assert.Equal(t, paidAt.Add(30*24*time.Hour), *result.Subscription.ExpiresAt())
		assert.True(t, result.DeviceAssigned)
		require.NotNil(t, result.Subscription.DeviceID())
		require.Len(t, notifier.messages, 1)
		assert.Contains(t, notifier.messages[0], "active until")
	})

	t.Run("duplicate delivery is a no-op success", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		pendingSub(t, subRepo, 7, "inv-1")
		devRepo := newFakeDeviceRepo()
		devRepo.addAvailable(t)
		notifier := &fakeNotifier{}
		uc := newUC(subRepo, devRepo, notifier)

		first, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-1", PaidAt: time.Now().UTC()})
		require.NoError(t, err)
		expiry := *first.Subscription.ExpiresAt()

		second, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-1", PaidAt: time.Now().UTC()})
		require.NoError(t, err)
		assert.True(t, second.AlreadyActive)
		assert.Equal(t, expiry, *second.Subscription.ExpiresAt())
		// Only the first delivery announced anything.
		assert.Len(t, notifier.messages, 1)
	})

	t.Run("empty pool defers device assignment", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		pendingSub(t, subRepo, 7, "inv-1")
		uc := newUC(subRepo, newFakeDeviceRepo(), &fakeNotifier{})

		result, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-1", PaidAt: time.Now().UTC()})
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, result.Subscription.Status())
		assert.False(t, result.DeviceAssigned)
		assert.Nil(t, result.Subscription.DeviceID())
	})

	t.Run("cancel then pay records the payment without reactivating", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		sub := pendingSub(t, subRepo, 7, "inv-1")
		require.NoError(t, sub.Cancel())
		uc := newUC(subRepo, newFakeDeviceRepo(), &fakeNotifier{})

		result, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-1", PaidAt: time.Now().UTC()})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusCancelled, result.Subscription.Status())
		assert.False(t, result.AlreadyActive)
		assert.NotEmpty(t, result.Subscription.Metadata()["payment_after_cancel_at"])
	})

	t.Run("unknown invoice", func(t *testing.T) {
		uc := newUC(newFakeSubscriptionRepo(), newFakeDeviceRepo(), &fakeNotifier{})

		_, err := uc.Execute(context.Background(), ActivateSubscriptionCommand{InvoiceID: "inv-unknown", PaidAt: time.Now().UTC()})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

// --- CancelSubscriptionUseCase ---

func TestCancelSubscription(t *testing.T) {
	t.Run("cancels active and frees the device", func(t *testing.T) {
		subRepo := newFakeSubscriptionRepo()
		sub := pendingSub(t, subRepo, 7, "inv-1")
		devRepo := newFakeDeviceRepo()
		d := devRepo.addAvailable(t)
		require.NoError(t, d.MarkInUse())
		require.NoError(t, sub.Activate(time.Now().UTC(), 30))
		require.NoError(t, sub.AssignDevice(d.ID()))

		notifier := &fakeNotifier{}
		uc := NewCancelSubscriptionUseCase(
			subRepo, newFakeCustomerRepo(t, 7), testAllocator(devRepo), notifier, logger.NewLogger())

		cancelled, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: sub.ID(), Reason: "chargeback"})
		require.NoError(t, err)

		assert.Equal(t, subscription.StatusCancelled, cancelled.Status())
		assert.Nil(t, cancelled.DeviceID())
		assert.Equal(t, "chargeback", cancelled.Metadata()["cancel_reason"])
		assert.Equal(t, device.StatusAvailable, d.Status())
		require.Len(t, notifier.messages, 1)
		assert.Contains(t, notifier.messages[0], "cancelled")
	})

	t.Run("unknown subscription", func(t *testing.T) {
		uc := NewCancelSubscriptionUseCase(
			newFakeSubscriptionRepo(), newFakeCustomerRepo(t), testAllocator(newFakeDeviceRepo()), &fakeNotifier{}, logger.NewLogger())

		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 404})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

// --- ExpireSubscriptionsUseCase ---

func TestExpireSubscriptions(t *testing.T) {
	subRepo := newFakeSubscriptionRepo()
	devRepo := newFakeDeviceRepo()

	// Active but past its window, with a bound device.
	expired := pendingSub(t, subRepo, 7, "inv-1")
	paidAt := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, expired.Activate(paidAt, 30))
	d := devRepo.addAvailable(t)
	require.NoError(t, d.MarkInUse())
	require.NoError(t, expired.AssignDevice(d.ID()))

	// Still inside its window.
	current := pendingSub(t, subRepo, 8, "inv-2")
	require.NoError(t, current.Activate(time.Now().UTC(), 30))

	uc := NewExpireSubscriptionsUseCase(subRepo, testAllocator(devRepo), 3600, logger.NewLogger())
	uc.Execute(context.Background())

	assert.Equal(t, subscription.StatusExpired, expired.Status())
	assert.Nil(t, expired.DeviceID())
	assert.Equal(t, device.StatusAvailable, d.Status())
	assert.Equal(t, subscription.StatusActive, current.Status())
}
