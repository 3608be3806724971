package subscription

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// CanUseService reports whether a subscription in this status may
// request captures, subject to the expiry check on the aggregate.
func (s Status) CanUseService() bool {
	return s == StatusActive
}

func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPendingPayment: {StatusActive, StatusCancelled, StatusExpired},
		StatusActive:         {StatusExpired, StatusCancelled},
		StatusExpired:        {},
		StatusCancelled:      {},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[Status]bool{
	StatusPendingPayment: true,
	StatusActive:         true,
	StatusExpired:        true,
	StatusCancelled:      true,
}
