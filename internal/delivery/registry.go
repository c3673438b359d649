// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Handler delivers a batch report to the destination named by sessionKey.
type Handler func(sessionKey, message string) error

// Registry routes reports to a delivery handler chosen by session key
// prefix (e.g. "telegram:", "log:"). The longest matching prefix wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry with the "log:" handler pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
	}
	r.Register("log:", LogHandler)
	return r
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the session key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(sessionKey, message string) error {
	r.mu.RLock()
	var (
		best    string
		handler Handler
	)
	for prefix, h := range r.handlers {
		if strings.HasPrefix(sessionKey, prefix) && len(prefix) > len(best) {
			best, handler = prefix, h
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no delivery handler for session key: %s", sessionKey)
	}
	return handler(sessionKey, message)
}

// LogHandler writes the report to the structured log. It needs no
// credentials, which makes it the fallback notify target.
func LogHandler(sessionKey, message string) error {
	slog.Info("batch report", "session_key", sessionKey, "report", message)
	return nil
}
