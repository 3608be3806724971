package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound          = errors.New("session not found")
	ErrArtifactNotFound         = errors.New("capture artifact not found")
	ErrSessionAlreadyActive     = errors.New("customer already has an active session")
	ErrInvalidStatusTransition  = errors.New("invalid session status transition")
	ErrInvalidArtifactStatus    = errors.New("invalid artifact status transition")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}

func ErrInvalidArtifactTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidArtifactStatus, from, to)
}
