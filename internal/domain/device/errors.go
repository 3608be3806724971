package device

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound          = errors.New("device not found")
	ErrDeviceNotAvailable      = errors.New("device not available")
	ErrNoDeviceAvailable       = errors.New("no device available in pool")
	ErrInvalidStatusTransition = errors.New("invalid device status transition")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
