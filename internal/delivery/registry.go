// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/amana/internal/types"
)

// Handler delivers a message to the conversation's channel.
type Handler func(conversationID types.ConversationID, message string) error

// Registry routes outbound messages to the appropriate delivery handler
// based on conversation ID prefix. Telegram chat IDs are numeric, so
// the Telegram handler is usually registered as the catch-all under the
// empty prefix.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for conversation IDs starting with prefix.
// The empty prefix acts as the fallback handler.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the conversation ID prefix and
// calls it. Specific prefixes win over the empty fallback. Returns an
// error if no handler matches.
func (r *Registry) Deliver(conversationID types.ConversationID, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if prefix != "" && strings.HasPrefix(string(conversationID), prefix) {
			return handler(conversationID, message)
		}
	}
	if fallback, ok := r.handlers[""]; ok {
		return fallback(conversationID, message)
	}
	return fmt.Errorf("no delivery handler for conversation: %s", conversationID)
}
