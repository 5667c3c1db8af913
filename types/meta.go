package types

import (
	"errors"

	"github.com/google/uuid"
)

// SessionMeta identifies one session for logging, metrics and archival.
type SessionMeta struct {
	// ID is unique per session instance.
	ID string
	// Name is the operator-facing session name.
	Name string
	// Transport labels the producer kind (stream, ws, redis, postgres, replay, synthetic).
	Transport string
}

// NewSessionMeta creates metadata with a fresh random ID.
func NewSessionMeta(name, transport string) *SessionMeta {
	return &SessionMeta{
		ID:        uuid.NewString(),
		Name:      name,
		Transport: transport,
	}
}

// Validate checks required fields.
func (m *SessionMeta) Validate() error {
	if m == nil {
		return errors.New("session metadata is required")
	}
	if m.Name == "" {
		return errors.New("session name is required")
	}
	if m.Transport == "" {
		return errors.New("session transport is required")
	}
	return nil
}
