package usecases

import "context"

// CustomerNotifier pushes subscription lifecycle outcomes to the
// customer. Delivery is best-effort; a failed push never rolls back the
// transition it announces.
type CustomerNotifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
