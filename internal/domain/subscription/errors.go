package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrSubscriptionExpired     = errors.New("subscription expired")
	ErrSubscriptionCancelled   = errors.New("subscription cancelled")
	ErrNoActiveSubscription    = errors.New("no active subscription")
	ErrPendingPaymentExists    = errors.New("a subscription is already awaiting payment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrPlanNotFound            = errors.New("rental plan not found")
	ErrPlanInactive            = errors.New("rental plan inactive")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
