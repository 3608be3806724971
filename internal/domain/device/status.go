package device

type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusMaintenance Status = "maintenance"
	StatusOffline     Status = "offline"
)

func (s Status) String() string {
	return string(s)
}

// CanServeCapture reports whether a device in this pool status may be
// handed out to a customer.
func (s Status) CanServeCapture() bool {
	return s == StatusAvailable
}

func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusAvailable:   {StatusInUse, StatusMaintenance, StatusOffline},
		StatusInUse:       {StatusAvailable, StatusMaintenance, StatusOffline},
		StatusMaintenance: {StatusAvailable, StatusOffline},
		StatusOffline:     {StatusAvailable, StatusMaintenance},
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
	StatusAvailable:   true,
	StatusInUse:       true,
	StatusMaintenance: true,
	StatusOffline:     true,
}
