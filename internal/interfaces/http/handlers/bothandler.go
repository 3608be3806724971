// Package handlers contains the gin HTTP handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appcapture "dropcode/internal/application/capture"
	appcustomer "dropcode/internal/application/customer"
	subUsecases "dropcode/internal/application/subscription/usecases"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/session"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
	"dropcode/internal/shared/utils"
)

// BotHandler serves the operations the messaging front-end calls on
// behalf of customers. The front-end owns command parsing and prompt
// rendering; this API owns all state.
type BotHandler struct {
	customers        *appcustomer.Service
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	createSubUC      *subUsecases.CreateSubscriptionUseCase
	requestCaptureUC *appcapture.RequestCaptureUseCase
	logger           logger.Interface
}

func NewBotHandler(
	customers *appcustomer.Service,
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	createSubUC *subUsecases.CreateSubscriptionUseCase,
	requestCaptureUC *appcapture.RequestCaptureUseCase,
	log logger.Interface,
) *BotHandler {
	return &BotHandler{
		customers:        customers,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		createSubUC:      createSubUC,
		requestCaptureUC: requestCaptureUC,
		logger:           log,
	}
}

type ResolveCustomerRequest struct {
	TelegramID int64 `json:"telegram_id" binding:"required"`
}

type CustomerResponse struct {
	ID            uint   `json:"id"`
	TelegramID    int64  `json:"telegram_id"`
	Blocked       bool   `json:"blocked"`
	CaptureCount  uint   `json:"capture_count"`
	AwaitingInput string `json:"awaiting_input"`
	PendingPlanID *uint  `json:"pending_plan_id,omitempty"`
}

func customerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID(),
		TelegramID:    c.TelegramID(),
		Blocked:       c.IsBlocked(),
		CaptureCount:  c.CaptureCount(),
		AwaitingInput: string(c.AwaitingInput()),
		PendingPlanID: c.PendingPlanID(),
	}
}

// ResolveCustomer returns the customer for a messaging-platform user,
// registering them on first contact.
func (h *BotHandler) ResolveCustomer(c *gin.Context) {
	var req ResolveCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	cust, err := h.customers.ResolveOrRegister(c.Request.Context(), req.TelegramID)
	if err != nil {
		h.logger.Errorw("failed to resolve customer", "telegram_id", req.TelegramID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve customer")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "customer resolved", customerResponse(cust))
}

type AwaitInputRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	State      string `json:"state" binding:"required,oneof=asset tracking none"`
	PlanID     uint   `json:"plan_id"`
}

// SetAwaitingInput parks or clears the customer's conversational step.
func (h *BotHandler) SetAwaitingInput(c *gin.Context) {
	var req AwaitInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.State {
	case "asset":
		if req.PlanID == 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "plan_id is required for asset selection")
			return
		}
		err = h.customers.AwaitAssetChoice(ctx, req.TelegramID, req.PlanID)
	case "tracking":
		err = h.customers.AwaitTrackingID(ctx, req.TelegramID)
	case "none":
		err = h.customers.ClearAwaitingInput(ctx, req.TelegramID)
	}
	if err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "customer not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to update conversational state")
		return
	}

	utils.NoContentResponse(c)
}

type PlanResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	DurationDays  int    `json:"duration_days"`
	PriceEURCents int64  `json:"price_eur_cents"`
}

// ListPlans returns the purchasable plans in display order.
func (h *BotHandler) ListPlans(c *gin.Context) {
	plans, err := h.planRepo.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list plans", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to list plans")
		return
	}

	resp := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, PlanResponse{
			ID:            p.ID(),
			Name:          p.Name(),
			DurationDays:  p.DurationDays(),
			PriceEURCents: p.PriceEURCents(),
		})
	}
	utils.SuccessResponse(c, http.StatusOK, "plans retrieved", resp)
}

type SubscriptionResponse struct {
	ID          uint       `json:"id"`
	Status      string     `json:"status"`
	PlanID      uint       `json:"plan_id"`
	DeviceID    *uint      `json:"device_id,omitempty"`
	Asset       string     `json:"asset,omitempty"`
	AssetAmount string     `json:"asset_amount,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func subscriptionResponse(s *subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:          s.ID(),
		Status:      s.Status().String(),
		PlanID:      s.PlanID(),
		DeviceID:    s.DeviceID(),
		Asset:       s.Asset(),
		AssetAmount: s.AssetAmount(),
		ExpiresAt:   s.ExpiresAt(),
	}
}

// GetSubscription returns the customer's currently valid subscription.
func (h *BotHandler) GetSubscription(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil || telegramID == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid telegram id")
		return
	}

	cust, err := h.customers.ResolveOrRegister(c.Request.Context(), telegramID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve customer")
		return
	}

	sub, err := h.subscriptionRepo.GetActiveByCustomer(c.Request.Context(), cust.ID())
	if err != nil {
		if errors.Is(err, subscription.ErrNoActiveSubscription) {
			utils.ErrorResponse(c, http.StatusNotFound, "no active subscription")
			return
		}
		h.logger.Errorw("failed to get subscription", "customer_id", cust.ID(), "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to get subscription")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription retrieved", subscriptionResponse(sub))
}

type CreateSubscriptionRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	PlanID     uint   `json:"plan_id" binding:"required"`
	Asset      string `json:"asset" binding:"required"`
}

type CreateSubscriptionResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	PayURL       string               `json:"pay_url"`
}

// CreateSubscription creates a pending subscription with an invoice.
func (h *BotHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	cust, err := h.customers.ResolveOrRegister(ctx, req.TelegramID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to resolve customer")
		return
	}
	if cust.IsBlocked() {
		utils.ErrorResponse(c, http.StatusForbidden, "customer is blocked")
		return
	}

	result, err := h.createSubUC.Execute(ctx, subUsecases.CreateSubscriptionCommand{
		CustomerID: cust.ID(),
		PlanID:     req.PlanID,
		Asset:      req.Asset,
	})
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrPendingPaymentExists):
			utils.ErrorResponse(c, http.StatusConflict, "a subscription is already awaiting payment")
		case errors.Is(err, subscription.ErrPlanNotFound), errors.Is(err, subscription.ErrPlanInactive):
			utils.ErrorResponse(c, http.StatusNotFound, "plan not available")
		default:
			h.logger.Errorw("failed to create subscription", "telegram_id", req.TelegramID, "error", err)
			utils.ErrorResponse(c, http.StatusBadGateway, "failed to create invoice")
		}
		return
	}

	utils.CreatedResponse(c, CreateSubscriptionResponse{
		Subscription: subscriptionResponse(result.Subscription),
		PayURL:       result.PayURL,
	})
}

type RequestCaptureRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required"`
	TrackingID string `json:"tracking_id"`
}

type RequestCaptureResponse struct {
	SessionSID  string     `json:"session_sid"`
	ArtifactSID string     `json:"artifact_sid"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CourierName string     `json:"courier_name,omitempty"`
	LockerCode  string     `json:"locker_code,omitempty"`
}

// RequestCapture opens a session and queues the capture. The screenshot
// is pushed to the customer asynchronously when it is ready.
func (h *BotHandler) RequestCapture(c *gin.Context) {
	var req RequestCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.requestCaptureUC.Execute(c.Request.Context(), appcapture.RequestCaptureCommand{
		TelegramID: req.TelegramID,
		TrackingID: req.TrackingID,
	})
	if err != nil {
		h.respondCaptureError(c, req.TelegramID, err)
		return
	}

	utils.SuccessResponse(c, http.StatusAccepted, "capture queued", RequestCaptureResponse{
		SessionSID:  result.Session.SID(),
		ArtifactSID: result.Artifact.SID(),
		ExpiresAt:   result.Session.ExpiresAt(),
		CourierName: result.Device.CourierName(),
		LockerCode:  result.Device.LockerCode(),
	})
}

func (h *BotHandler) respondCaptureError(c *gin.Context, telegramID int64, err error) {
	switch {
	case errors.Is(err, customer.ErrCustomerNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "customer not found")
	case errors.Is(err, customer.ErrCustomerBlocked):
		utils.ErrorResponse(c, http.StatusForbidden, "customer is blocked")
	case errors.Is(err, subscription.ErrNoActiveSubscription):
		utils.ErrorResponse(c, http.StatusPaymentRequired, "no active subscription")
	case errors.Is(err, device.ErrNoDeviceAvailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "no device available, try again shortly")
	case errors.Is(err, appcapture.ErrQueueFull):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "capture queue is full, try again shortly")
	case errors.Is(err, session.ErrSessionAlreadyActive):
		utils.ErrorResponse(c, http.StatusConflict, "a session is already in progress")
	default:
		h.logger.Errorw("capture request failed", "telegram_id", telegramID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to request capture")
	}
}
