package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dropcode/internal/application/payment/gateway"
)

const (
	headerSignature = "Crypto-Pay-Signature"

	// signingKeyLabel domain-separates the webhook signing key from any
	// other use of the shared secret.
	signingKeyLabel = "webhook-signature-v1"

	maxWebhookBodySize = 1 << 20
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// wireWebhook is the processor's callback envelope.
type wireWebhook struct {
	UpdateType string      `json:"update_type"`
	Payload    wireInvoice `json:"payload"`
}

// VerifyWebhook authenticates and parses a processor callback. The
// signature is hex HMAC-SHA256 over the raw body, keyed with
// HMAC-SHA256(shared secret, label). Verification happens before the
// body is parsed as JSON; a payload with a bad signature never reaches
// business logic no matter how well-formed it is.
func (c *Client) VerifyWebhook(req *http.Request) (*gateway.WebhookEvent, error) {
	provided := req.Header.Get(headerSignature)
	if provided == "" {
		return nil, ErrMissingSignature
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook body: %w", err)
	}

	expected := ComputeSignature(c.cfg.WebhookSecret, body)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	var wire wireWebhook
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}

	return &gateway.WebhookEvent{
		Type:    wire.UpdateType,
		Invoice: wire.Payload.toGateway(),
	}, nil
}

// ComputeSignature derives the signing key from the shared secret and
// returns the hex signature of body. Exported so tests and tooling can
// produce valid signatures.
func ComputeSignature(secret string, body []byte) string {
	keyMAC := hmac.New(sha256.New, []byte(secret))
	keyMAC.Write([]byte(signingKeyLabel))
	signingKey := keyMAC.Sum(nil)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
