// internal/types/models.go
package types

import "time"

// Intent tags the productivity action a conversation is working toward.
type Intent string

const (
	IntentNone        Intent = "NONE"
	IntentCreateEvent Intent = "CREATE_EVENT"
	IntentReadEmails  Intent = "READ_EMAILS"
	IntentSendEmail   Intent = "SEND_EMAIL"
	IntentSaveMemory  Intent = "SAVE_MEMORY"
	IntentShowAgenda  Intent = "SHOW_AGENDA"
)

// Intents lists every registered intent tag, in the order the classifier
// preamble enumerates them.
func Intents() []Intent {
	return []Intent{
		IntentCreateEvent,
		IntentReadEmails,
		IntentSendEmail,
		IntentSaveMemory,
		IntentShowAgenda,
	}
}

// Known reports whether tag names a registered intent.
func Known(tag Intent) bool {
	for _, it := range Intents() {
		if it == tag {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

const (
	// MaxHistory bounds the per-conversation history; oldest entries drop
	// on overflow.
	MaxHistory = 12
	// MaxHistoryText truncates each stored history entry.
	MaxHistoryText = 500
)

type HistoryEntry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Fields maps slot names to collected values. Values are scalars
// (string, float64, int) or []string lists.
type Fields map[string]any

// Clone returns a shallow copy; list values are copied so callers can
// mutate the result freely.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if list, ok := v.([]string); ok {
			cp := make([]string, len(list))
			copy(cp, list)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Conversation is the durable per-chat record. The store is the single
// source of truth between webhook invocations; nothing holds session
// state in memory across handle cycles.
type Conversation struct {
	ID         ConversationID `json:"conversation_id"`
	Intent     Intent         `json:"intent,omitempty"`
	Fields     Fields         `json:"fields"`
	Stage      string         `json:"stage,omitempty"`
	History    []HistoryEntry `json:"history"`
	LastUpdate time.Time      `json:"last_update"`
}

// NewConversation returns the idle default record for id.
func NewConversation(id ConversationID) *Conversation {
	return &Conversation{
		ID:      id,
		Fields:  Fields{},
		History: []HistoryEntry{},
	}
}

// Idle reports whether no task is active. The idle invariant ties intent,
// fields, and stage together: all empty or none.
func (c *Conversation) Idle() bool {
	return c.Intent == "" || c.Intent == IntentNone
}
