// Package cryptopay implements the payment processor contract against a
// crypto payment API: invoice issuance, invoice polling, the exchange
// rate table, and HMAC verification of its webhook callbacks.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"dropcode/internal/application/payment/gateway"
	"dropcode/internal/shared/config"
	"dropcode/internal/shared/logger"
)

const (
	requestTimeout  = 15 * time.Second
	maxResponseSize = 2 << 20

	headerAPIToken = "Crypto-Pay-API-Token"
)

// Client talks to the crypto payment processor's REST API.
type Client struct {
	cfg        config.PaymentConfig
	httpClient *http.Client
	logger     logger.Interface
}

var _ gateway.Processor = (*Client)(nil)

func NewClient(cfg config.PaymentConfig, log logger.Interface) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: log.Named("cryptopay"),
	}
}

// apiEnvelope is the processor's uniform response wrapper.
type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// wireInvoice is the processor's invoice representation.
type wireInvoice struct {
	InvoiceID  int64  `json:"invoice_id"`
	Status     string `json:"status"`
	Asset      string `json:"asset"`
	Amount     string `json:"amount"`
	PayURL     string `json:"pay_url"`
	Payload    string `json:"payload"`
	CreatedAt  string `json:"created_at"`
	PaidAt     string `json:"paid_at"`
	ExpiresAt  string `json:"expiration_date"`
	PaidAsset  string `json:"paid_asset"`
	PaidAmount string `json:"paid_amount"`
}

func (w wireInvoice) toGateway() gateway.Invoice {
	inv := gateway.Invoice{
		ID:         strconv.FormatInt(w.InvoiceID, 10),
		Status:     gateway.InvoiceStatus(w.Status),
		Asset:      w.Asset,
		Amount:     w.Amount,
		PayURL:     w.PayURL,
		Payload:    w.Payload,
		PaidAsset:  w.PaidAsset,
		PaidAmount: w.PaidAmount,
	}
	if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		inv.CreatedAt = t
	}
	if w.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, w.PaidAt); err == nil {
			inv.PaidAt = &t
		}
	}
	if w.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, w.ExpiresAt); err == nil {
			inv.ExpiresAt = &t
		}
	}
	return inv
}

func (c *Client) CreateInvoice(ctx context.Context, req gateway.CreateInvoiceRequest) (*gateway.Invoice, error) {
	params := map[string]any{
		"asset":       req.Asset,
		"amount":      req.Amount,
		"description": req.Description,
		"payload":     req.Payload,
	}
	if req.ExpiresIn > 0 {
		params["expires_in"] = int(req.ExpiresIn.Seconds())
	}
	if req.HiddenMessage != "" {
		params["hidden_message"] = req.HiddenMessage
	}

	var wire wireInvoice
	if err := c.call(ctx, "createInvoice", params, &wire); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	inv := wire.toGateway()
	c.logger.Infow("invoice created", "invoice_id", inv.ID, "asset", inv.Asset, "amount", inv.Amount)
	return &inv, nil
}

type getInvoicesResult struct {
	Items []wireInvoice `json:"items"`
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*gateway.Invoice, error) {
	params := map[string]any{"invoice_ids": invoiceID}

	var result getInvoicesResult
	if err := c.call(ctx, "getInvoices", params, &result); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("invoice %s not found", invoiceID)
	}

	inv := result.Items[0].toGateway()
	return &inv, nil
}

type wireRate struct {
	IsValid bool   `json:"is_valid"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Rate    string `json:"rate"`
}

func (c *Client) GetExchangeRates(ctx context.Context) ([]gateway.ExchangeRate, error) {
	var wire []wireRate
	if err := c.call(ctx, "getExchangeRates", nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to get exchange rates: %w", err)
	}

	rates := make([]gateway.ExchangeRate, 0, len(wire))
	for _, r := range wire {
		rate, err := strconv.ParseFloat(r.Rate, 64)
		if err != nil {
			// A malformed entry invalidates itself, not the whole table.
			c.logger.Warnw("skipping malformed rate entry", "source", r.Source, "target", r.Target, "rate", r.Rate)
			continue
		}
		rates = append(rates, gateway.ExchangeRate{
			Source: r.Source,
			Target: r.Target,
			Rate:   rate,
			Valid:  r.IsValid,
		})
	}
	return rates, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	var reader io.Reader
	if params != nil {
		jsonBody, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/api/"+method, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIToken, c.cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.OK {
		if envelope.Error != nil {
			return fmt.Errorf("api error %d: %s", envelope.Error.Code, envelope.Error.Name)
		}
		return fmt.Errorf("api returned not ok with status code %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
