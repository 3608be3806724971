// Package gateway defines the payment processor contract. The concrete
// crypto processor client lives in infrastructure; use cases depend only
// on this interface.
package gateway

import (
	"context"
	"net/http"
	"time"
)

// InvoiceStatus is the processor-side invoice state.
type InvoiceStatus string

const (
	InvoiceActive  InvoiceStatus = "active"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceExpired InvoiceStatus = "expired"
)

// CreateInvoiceRequest describes one invoice to issue.
type CreateInvoiceRequest struct {
	Asset       string
	Amount      string
	Description string
	// Payload is an opaque correlation value echoed back on the webhook.
	Payload       string
	ExpiresIn     time.Duration
	HiddenMessage string
}

// Invoice is the processor's view of an issued invoice.
type Invoice struct {
	ID         string
	Status     InvoiceStatus
	Asset      string
	Amount     string
	PayURL     string
	Payload    string
	CreatedAt  time.Time
	PaidAt     *time.Time
	ExpiresAt  *time.Time
	PaidAsset  string
	PaidAmount string
}

// ExchangeRate is one entry of the processor's rate table. Rate is the
// amount of Target one unit of Source buys.
type ExchangeRate struct {
	Source string
	Target string
	Rate   float64
	Valid  bool
}

// WebhookEvent is a verified, parsed processor callback.
type WebhookEvent struct {
	Type    string
	Invoice Invoice
}

// Processor is the payment processor integration contract.
type Processor interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	GetExchangeRates(ctx context.Context) ([]ExchangeRate, error)

	// VerifyWebhook checks the request signature over the raw body and
	// parses the event. Invalid signatures are rejected before any parsing
	// of the payload is trusted.
	VerifyWebhook(req *http.Request) (*WebhookEvent, error)
}
