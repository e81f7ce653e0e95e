// internal/scheduler/scheduler.go
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/types"
)

// Handler is the callback invoked when an automation fires. The message
// enters the dialog engine as if the user had typed it.
type Handler func(conversationID types.ConversationID, message string)

// Scheduler evaluates cron expressions from the automation store and
// fires automations through a handler callback.
type Scheduler struct {
	store   *store.AutomationStore
	handler Handler
	cron    *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler backed by the given automation store. The
// handler is called each time an automation fires.
func New(s *store.AutomationStore, handler Handler) *Scheduler {
	return &Scheduler{
		store:   s,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
	}
}

// Start loads automations from the store, registers enabled ones that
// have a schedule as cron entries, and starts the cron ticker.
func (s *Scheduler) Start() error {
	automations, err := s.store.List()
	if err != nil {
		return err
	}

	for _, auto := range automations {
		if auto.Schedule == "" || !auto.Enabled {
			continue
		}

		conversationID := auto.ConversationID
		message := auto.Message
		schedule := auto.Schedule
		name := auto.Name

		_, err := s.cron.AddFunc(schedule, func() {
			slog.Info("cron firing automation", "name", name, "conversation_id", string(conversationID))
			s.handler(conversationID, message)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", name, "schedule", schedule, "error", err)
			continue
		}
		slog.Info("scheduled automation", "name", name, "schedule", schedule)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and calls Start()
// again.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
