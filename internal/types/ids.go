// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type RunID string

// NewRunID returns a fresh identifier for one batch invocation.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// NewSessionID is used when a hook payload carries no session id.
func NewSessionID() string {
	return uuid.New().String()
}
