// internal/types/result.go
package types

import (
	"errors"
	"fmt"
)

// Command tags a dispatcher operation. The set is closed; the dispatcher
// is the only place a tag maps to a backend call.
type Command string

const (
	CommandCreateEvent Command = "CREATE_EVENT"
	CommandReadEmails  Command = "READ_EMAILS"
	CommandSendEmail   Command = "SEND_EMAIL"
	CommandSaveMemory  Command = "SAVE_MEMORY"
	CommandShowAgenda  Command = "SHOW_AGENDA"
	CommandSaveFile    Command = "SAVE_FILE"
)

// Result is the normalized outcome of a dispatched command.
type Result struct {
	OK      bool           `json:"ok"`
	ID      string         `json:"id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ErrKind classifies component errors so the orchestrator can switch on
// kind rather than type.
type ErrKind string

const (
	// KindInvalid marks user-supplied values failing a validator; the
	// offending slot gets re-prompted.
	KindInvalid ErrKind = "invalid"
	// KindTransient marks timeouts, 5xx, and rate limits; task state is
	// kept so the user can retry.
	KindTransient ErrKind = "transient"
	// KindPermanent marks auth failures and malformed payloads; fatal for
	// the task.
	KindPermanent ErrKind = "permanent"
)

// Error carries a kind plus the slot most likely at fault, when known.
type Error struct {
	Kind ErrKind
	Slot string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind ErrKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, defaulting unknown errors to
// transient so the user can retry.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// SlotOf extracts the at-fault slot from err, if any.
func SlotOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Slot
	}
	return ""
}
