// Package gateway fans inbound messages into per-conversation FIFO
// lanes, drops duplicate deliveries, and hands each turn to the dialog
// handler under a global concurrency cap.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/user/amana/internal/dedup"
	"github.com/user/amana/internal/types"
)

// ErrDuplicate marks a delivery that was already processed. Callers
// should acknowledge and drop it.
var ErrDuplicate = errors.New("duplicate delivery")

// Handler processes one conversational turn and produces the reply text.
type Handler interface {
	Handle(ctx context.Context, id types.ConversationID, text string) string
}

// Gateway routes inbound messages into turns. Duplicates are dropped at
// the door; accepted turns are enqueued on the conversation's lane.
type Gateway struct {
	handler Handler
	guard   *dedup.Guard
	Queue   *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway over the given handler and dedup guard with the
// given concurrency limit for simultaneous turn processing.
func New(handler Handler, guard *dedup.Guard, maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	g := &Gateway{
		handler: handler,
		guard:   guard,
		Queue:   NewQueue(maxConcurrent),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// TurnOption configures optional behavior on a Turn.
type TurnOption func(*Turn)

// WithOnComplete sets a callback invoked with the final reply text.
func WithOnComplete(fn func(string)) TurnOption {
	return func(t *Turn) { t.OnComplete = fn }
}

// WithVoice marks the turn as originating from a voice note.
func WithVoice() TurnOption {
	return func(t *Turn) { t.Voice = true }
}

// HandleInbound checks the delivery against the dedup guard and, if
// fresh, enqueues a Turn on the conversation's lane. A duplicate
// returns ErrDuplicate without enqueueing.
func (g *Gateway) HandleInbound(deliveryID types.DeliveryID, conversationID types.ConversationID, text string, opts ...TurnOption) error {
	if deliveryID != "" && g.guard.Seen(deliveryID) {
		slog.Info("duplicate delivery dropped", "delivery_id", string(deliveryID))
		return ErrDuplicate
	}
	turn := NewTurn(deliveryID, conversationID, text)
	for _, opt := range opts {
		opt(turn)
	}
	return g.Queue.Enqueue(turn)
}

func (g *Gateway) process(turn *Turn) error {
	turn.Status = TurnStatusRunning
	reply := g.handler.Handle(turn.Ctx, turn.ConversationID, turn.Text)
	turn.Status = TurnStatusComplete
	if turn.OnComplete != nil {
		turn.OnComplete(reply)
	}
	return nil
}
