package gateway

import (
	"context"
	"time"

	"github.com/user/amana/internal/types"
)

// TurnStatus represents the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn tracks a single processing of an inbound message against a
// conversation.
type Turn struct {
	DeliveryID     types.DeliveryID
	ConversationID types.ConversationID
	Text           string
	Voice          bool
	Status         TurnStatus
	CreatedAt      time.Time
	Ctx            context.Context
	OnComplete     func(reply string)
}

// NewTurn creates a Turn in the Queued state.
func NewTurn(deliveryID types.DeliveryID, conversationID types.ConversationID, text string) *Turn {
	return &Turn{
		DeliveryID:     deliveryID,
		ConversationID: conversationID,
		Text:           text,
		Status:         TurnStatusQueued,
		CreatedAt:      time.Now(),
	}
}
