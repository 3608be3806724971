package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appcustomer "dropcode/internal/application/customer"
	appsession "dropcode/internal/application/session"
	subUsecases "dropcode/internal/application/subscription/usecases"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/session"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/biztime"
	"dropcode/internal/shared/logger"
	"dropcode/internal/shared/utils"
)

// AdminHandler serves the administrative surface over customers,
// plans, subscriptions, and rental sessions.
type AdminHandler struct {
	customers        *appcustomer.Service
	customerRepo     customer.Repository
	planRepo         subscription.PlanRepository
	subscriptionRepo subscription.Repository
	sessionRepo      session.Repository
	tracker          *appsession.Tracker
	activateUC       *subUsecases.ActivateSubscriptionUseCase
	cancelUC         *subUsecases.CancelSubscriptionUseCase
	notifier         subUsecases.CustomerNotifier
	logger           logger.Interface
}

func NewAdminHandler(
	customers *appcustomer.Service,
	customerRepo customer.Repository,
	planRepo subscription.PlanRepository,
	subscriptionRepo subscription.Repository,
	sessionRepo session.Repository,
	tracker *appsession.Tracker,
	activateUC *subUsecases.ActivateSubscriptionUseCase,
	cancelUC *subUsecases.CancelSubscriptionUseCase,
	notifier subUsecases.CustomerNotifier,
	log logger.Interface,
) *AdminHandler {
	return &AdminHandler{
		customers:        customers,
		customerRepo:     customerRepo,
		planRepo:         planRepo,
		subscriptionRepo: subscriptionRepo,
		sessionRepo:      sessionRepo,
		tracker:          tracker,
		activateUC:       activateUC,
		cancelUC:         cancelUC,
		notifier:         notifier,
		logger:           log,
	}
}

// --- customers ---

type AdminCustomerResponse struct {
	ID           uint      `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Blocked      bool      `json:"blocked"`
	CaptureCount uint      `json:"capture_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func adminCustomerResponse(c *customer.Customer) AdminCustomerResponse {
	return AdminCustomerResponse{
		ID:           c.ID(),
		TelegramID:   c.TelegramID(),
		Blocked:      c.IsBlocked(),
		CaptureCount: c.CaptureCount(),
		CreatedAt:    c.CreatedAt(),
	}
}

func (h *AdminHandler) ListCustomers(c *gin.Context) {
	page, pageSize := paginationParams(c)

	customers, total, err := h.customerRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Errorw("failed to list customers", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to list customers")
		return
	}

	resp := make([]AdminCustomerResponse, 0, len(customers))
	for _, cust := range customers {
		resp = append(resp, adminCustomerResponse(cust))
	}
	utils.ListSuccessResponse(c, resp, total, page, pageSize)
}

func (h *AdminHandler) BlockCustomer(c *gin.Context) {
	h.setCustomerBlocked(c, true)
}

func (h *AdminHandler) UnblockCustomer(c *gin.Context) {
	h.setCustomerBlocked(c, false)
}

func (h *AdminHandler) setCustomerBlocked(c *gin.Context, blocked bool) {
	customerID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	cust, err := h.customers.SetBlocked(c.Request.Context(), customerID, blocked)
	if err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "customer not found")
			return
		}
		h.logger.Errorw("failed to update customer block state", "customer_id", customerID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to update customer")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "customer updated", adminCustomerResponse(cust))
}

// --- plans ---

type CreatePlanRequest struct {
	Name          string `json:"name" binding:"required"`
	DurationDays  int    `json:"duration_days" binding:"required,gt=0"`
	PriceEURCents int64  `json:"price_eur_cents" binding:"required,gt=0"`
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	plan, err := subscription.NewPlan(req.Name, req.DurationDays, req.PriceEURCents)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.planRepo.Create(c.Request.Context(), plan); err != nil {
		h.logger.Errorw("failed to create plan", "name", req.Name, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to create plan")
		return
	}

	utils.CreatedResponse(c, PlanResponse{
		ID:            plan.ID(),
		Name:          plan.Name(),
		DurationDays:  plan.DurationDays(),
		PriceEURCents: plan.PriceEURCents(),
	})
}

func (h *AdminHandler) DeactivatePlan(c *gin.Context) {
	planID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	plan, err := h.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, subscription.ErrPlanNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "plan not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to load plan")
		return
	}

	plan.Deactivate()
	if err := h.planRepo.Update(ctx, plan); err != nil {
		h.logger.Errorw("failed to deactivate plan", "plan_id", planID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to deactivate plan")
		return
	}
	utils.NoContentResponse(c)
}

// --- subscriptions ---

type AdminSubscriptionResponse struct {
	ID         uint       `json:"id"`
	CustomerID uint       `json:"customer_id"`
	PlanID     uint       `json:"plan_id"`
	DeviceID   *uint      `json:"device_id,omitempty"`
	Status     string     `json:"status"`
	InvoiceID  string     `json:"invoice_id"`
	Asset      string     `json:"asset"`
	Amount     string     `json:"asset_amount"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func adminSubscriptionResponse(s *subscription.Subscription) AdminSubscriptionResponse {
	return AdminSubscriptionResponse{
		ID:         s.ID(),
		CustomerID: s.CustomerID(),
		PlanID:     s.PlanID(),
		DeviceID:   s.DeviceID(),
		Status:     s.Status().String(),
		InvoiceID:  s.InvoiceID(),
		Asset:      s.Asset(),
		Amount:     s.AssetAmount(),
		PaidAt:     s.PaidAt(),
		ExpiresAt:  s.ExpiresAt(),
		CreatedAt:  s.CreatedAt(),
	}
}

func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	page, pageSize := paginationParams(c)

	subs, total, err := h.subscriptionRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Errorw("failed to list subscriptions", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	resp := make([]AdminSubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		resp = append(resp, adminSubscriptionResponse(s))
	}
	utils.ListSuccessResponse(c, resp, total, page, pageSize)
}

// ActivateSubscription confirms payment manually, bypassing the
// processor webhook. Runs the same idempotent activation path.
func (h *AdminHandler) ActivateSubscription(c *gin.Context) {
	subID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := h.subscriptionRepo.GetByID(ctx, subID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "subscription not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	result, err := h.activateUC.Execute(ctx, subUsecases.ActivateSubscriptionCommand{
		InvoiceID: sub.InvoiceID(),
		PaidAt:    biztime.NowUTC(),
	})
	if err != nil {
		h.logger.Errorw("manual activation failed", "subscription_id", subID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "activation failed")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription activated", adminSubscriptionResponse(result.Subscription))
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) CancelSubscription(c *gin.Context) {
	subID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	// Body is optional; an absent or malformed one means no reason given.
	var req CancelSubscriptionRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := h.cancelUC.Execute(c.Request.Context(), subUsecases.CancelSubscriptionCommand{
		SubscriptionID: subID,
		Reason:         req.Reason,
	})
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "subscription not found")
			return
		}
		if errors.Is(err, subscription.ErrInvalidStatusTransition) {
			utils.ErrorResponse(c, http.StatusConflict, err.Error())
			return
		}
		h.logger.Errorw("failed to cancel subscription", "subscription_id", subID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to cancel subscription")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription cancelled", adminSubscriptionResponse(sub))
}

// --- sessions ---

type AdminSessionResponse struct {
	ID          uint       `json:"id"`
	SID         string     `json:"sid"`
	CustomerID  uint       `json:"customer_id"`
	DeviceID    *uint      `json:"device_id,omitempty"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func adminSessionResponse(s *session.RentalSession) AdminSessionResponse {
	return AdminSessionResponse{
		ID:          s.ID(),
		SID:         s.SID(),
		CustomerID:  s.CustomerID(),
		DeviceID:    s.DeviceID(),
		Status:      s.Status().String(),
		StartedAt:   s.StartedAt(),
		ExpiresAt:   s.ExpiresAt(),
		CompletedAt: s.CompletedAt(),
		CreatedAt:   s.CreatedAt(),
	}
}

func (h *AdminHandler) ListSessions(c *gin.Context) {
	page, pageSize := paginationParams(c)

	sessions, total, err := h.sessionRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Errorw("failed to list sessions", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := make([]AdminSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, adminSessionResponse(s))
	}
	utils.ListSuccessResponse(c, resp, total, page, pageSize)
}

// CancelSession aborts a live session and frees its device.
func (h *AdminHandler) CancelSession(c *gin.Context) {
	sid := c.Param("sid")
	if sid == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid sid")
		return
	}

	s, err := h.tracker.Cancel(c.Request.Context(), sid)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "session not found")
			return
		}
		if errors.Is(err, session.ErrInvalidStatusTransition) {
			utils.ErrorResponse(c, http.StatusConflict, err.Error())
			return
		}
		h.logger.Errorw("failed to cancel session", "sid", sid, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to cancel session")
		return
	}

	if h.notifier != nil {
		if cust, cerr := h.customerRepo.GetByID(c.Request.Context(), s.CustomerID()); cerr == nil {
			msg := "Your rental session was cancelled by an administrator."
			if nerr := h.notifier.SendMessage(c.Request.Context(), cust.TelegramID(), msg); nerr != nil {
				h.logger.Warnw("failed to notify session cancellation", "sid", sid, "error", nerr)
			}
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "session cancelled", adminSessionResponse(s))
}
