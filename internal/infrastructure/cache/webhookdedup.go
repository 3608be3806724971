package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookSeenPrefix = "cryptopay:webhook:seen:"
	webhookSeenTTL    = 48 * time.Hour
)

// WebhookDeduplicator short-circuits duplicate webhook deliveries. The
// subscription state machine is idempotent on its own; this is a cheap
// first gate that keeps repeated deliveries from doing repeated database
// work. Redis being unavailable degrades to "not seen" so a delivery is
// never dropped because the cache is down.
type WebhookDeduplicator struct {
	client *redis.Client
}

func NewWebhookDeduplicator(client *redis.Client) *WebhookDeduplicator {
	return &WebhookDeduplicator{client: client}
}

// Seen reports whether an invoice id has already been processed. It
// never marks: a delivery counts as seen only once its activation has
// actually succeeded, so a transient failure stays retryable.
func (d *WebhookDeduplicator) Seen(ctx context.Context, invoiceID string) (bool, error) {
	n, err := d.client.Exists(ctx, webhookSeenPrefix+invoiceID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check webhook seen: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records an invoice id after successful processing.
func (d *WebhookDeduplicator) MarkSeen(ctx context.Context, invoiceID string) error {
	key := webhookSeenPrefix + invoiceID
	if err := d.client.Set(ctx, key, 1, webhookSeenTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark webhook seen: %w", err)
	}
	return nil
}
