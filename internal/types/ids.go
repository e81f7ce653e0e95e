// internal/types/ids.go
package types

import (
	"regexp"

	"github.com/google/uuid"
)

type ConversationID string
type DeliveryID string
type AutomationID string

func NewAutomationID() AutomationID {
	return AutomationID(uuid.New().String())
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// SafeKey returns a filesystem-safe form of the conversation id, used as
// the on-disk file name for its context record.
func (id ConversationID) SafeKey() string {
	return unsafeKeyChars.ReplaceAllString(string(id), "_")
}
