package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dropcode/internal/application/payment/gateway"
	subUsecases "dropcode/internal/application/subscription/usecases"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
	"dropcode/internal/shared/utils"
)

const eventInvoicePaid = "invoice_paid"

// WebhookDeduplicator gates duplicate processor deliveries. An invoice
// counts as seen only once its activation succeeded; checking and
// marking are separate so a transient failure stays retryable.
type WebhookDeduplicator interface {
	Seen(ctx context.Context, invoiceID string) (bool, error)
	MarkSeen(ctx context.Context, invoiceID string) error
}

// WebhookHandler receives the payment processor's callbacks. Signature
// verification happens before anything else; delivery is at-least-once
// and possibly out of order, so everything downstream is idempotent.
type WebhookHandler struct {
	processor  gateway.Processor
	dedup      WebhookDeduplicator
	activateUC *subUsecases.ActivateSubscriptionUseCase
	logger     logger.Interface
}

func NewWebhookHandler(
	processor gateway.Processor,
	dedup WebhookDeduplicator,
	activateUC *subUsecases.ActivateSubscriptionUseCase,
	log logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		processor:  processor,
		dedup:      dedup,
		activateUC: activateUC,
		logger:     log,
	}
}

// HandlePaymentWebhook processes one processor callback. Unknown event
// types and duplicates return 200 so the processor stops redelivering;
// only signature failures and transient internal errors are non-2xx.
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	event, err := h.processor.VerifyWebhook(c.Request)
	if err != nil {
		h.logger.Warnw("rejected payment webhook", "error", err, "client_ip", c.ClientIP())
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid signature")
		return
	}

	if event.Type != eventInvoicePaid {
		h.logger.Infow("ignoring webhook event", "type", event.Type)
		utils.SuccessResponse(c, http.StatusOK, "ignored", nil)
		return
	}

	ctx := c.Request.Context()

	// Cheap first gate; the activation itself is idempotent regardless.
	if h.dedup != nil {
		seen, err := h.dedup.Seen(ctx, event.Invoice.ID)
		if err != nil {
			h.logger.Warnw("webhook dedup unavailable, proceeding", "invoice_id", event.Invoice.ID, "error", err)
		} else if seen {
			h.logger.Infow("duplicate webhook delivery short-circuited", "invoice_id", event.Invoice.ID)
			utils.SuccessResponse(c, http.StatusOK, "already processed", nil)
			return
		}
	}

	paidAt := time.Time{}
	if event.Invoice.PaidAt != nil {
		paidAt = *event.Invoice.PaidAt
	}

	// The use case notifies the customer itself; a duplicate delivery is
	// a silent no-op.
	_, err = h.activateUC.Execute(ctx, subUsecases.ActivateSubscriptionCommand{
		InvoiceID: event.Invoice.ID,
		PaidAt:    paidAt,
	})
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			// An invoice this service never issued; acknowledge so the
			// processor does not retry forever.
			h.logger.Warnw("webhook for unknown invoice", "invoice_id", event.Invoice.ID)
			utils.SuccessResponse(c, http.StatusOK, "unknown invoice", nil)
			return
		}
		h.logger.Errorw("failed to activate subscription from webhook", "invoice_id", event.Invoice.ID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "activation failed")
		return
	}

	// Mark only after the activation landed. A delivery that failed above
	// answers non-2xx with no mark, so the processor's retry gets through.
	if h.dedup != nil {
		if err := h.dedup.MarkSeen(ctx, event.Invoice.ID); err != nil {
			h.logger.Warnw("failed to mark webhook processed", "invoice_id", event.Invoice.ID, "error", err)
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "processed", nil)
}
