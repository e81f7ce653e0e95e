// internal/dialog/orchestrator.go
//
// The orchestrator is the per-conversation state machine:
//
//	IDLE -> classify -> FILLING(intent, stage) -> [CONFIRMING] -> EXECUTING -> IDLE
//
// Tasks terminate; conversations persist. All state lives in the context
// store: the orchestrator holds nothing in memory between handle cycles,
// and it holds the store's per-conversation lock for the whole cycle so
// slot updates never interleave while an LLM or backend call is in
// flight.
package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/user/amana/internal/flow"
	"github.com/user/amana/internal/nlu"
	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/types"
)

// Classifier detects the intent of an utterance. Implementations never
// fail; LLM errors degrade to NONE.
type Classifier interface {
	Classify(ctx context.Context, text string, history []types.HistoryEntry) nlu.Classification
}

// Extractor fills slots from an utterance under a schema.
type Extractor interface {
	Extract(ctx context.Context, schema *flow.Schema, text, stage string, existing types.Fields) types.Fields
}

// Dispatcher executes a completed task's command.
type Dispatcher interface {
	Execute(ctx context.Context, cmd types.Command, data map[string]any) (*types.Result, error)
}

// ContextStore is the durable per-conversation state contract consumed by
// the orchestrator.
type ContextStore interface {
	Acquire(id types.ConversationID) func()
	Load(id types.ConversationID) (*types.Conversation, error)
	Update(id types.ConversationID, p store.Partial) (*types.Conversation, error)
	PushHistory(id types.ConversationID, role types.Role, text string) error
	BeginTask(id types.ConversationID, intent types.Intent, initial types.Fields) error
	EndTask(id types.ConversationID) error
}

// User-facing reply texts (pt-BR).
const (
	replyCancelled   = "🚫 Ação cancelada. Pode pedir outra coisa!"
	replyNothing     = "👍 Nada em andamento."
	replyStoreError  = "⚠️ Tive um problema para acessar seu contexto. Pode tentar de novo em instantes?"
	replyRetryAsk    = "Não consegui agora, quer tentar de novo? (sim/não)"
	replyYesNoAgain  = "Não entendi. Pode responder sim ou não?"
	replyFallbackTip = "Desculpe, não entendi o que deseja fazer. Você pode pedir, por exemplo:\n" +
		"- 'Agende uma reunião'\n- 'Leia meus e-mails'\n- 'Envie um e-mail'\n" +
		"- 'Salve uma memória'\n- 'Mostre minha agenda'"
)

// Orchestrator drives the dialog state machine. All collaborators are
// injected; there are no package-level singletons.
type Orchestrator struct {
	store      ContextStore
	classifier Classifier
	extractor  Extractor
	registry   *flow.Registry
	dispatcher Dispatcher
	tz         *time.Location
	now        func() time.Time
}

// New wires an Orchestrator.
func New(cs ContextStore, c Classifier, e Extractor, r *flow.Registry, d Dispatcher, tz *time.Location) *Orchestrator {
	return &Orchestrator{
		store:      cs,
		classifier: c,
		extractor:  e,
		registry:   r,
		dispatcher: d,
		tz:         tz,
		now:        time.Now,
	}
}

// Handle processes one inbound user utterance and returns the reply. It
// never returns an error: every failure mode maps to a user-facing reply
// and a consistent stored state.
func (o *Orchestrator) Handle(ctx context.Context, id types.ConversationID, text string) string {
	release := o.store.Acquire(id)
	defer release()

	if err := o.store.PushHistory(id, types.RoleUser, text); err != nil {
		slog.Error("push history failed", "conversation_id", id, "error", err)
		return replyStoreError
	}

	conv, err := o.store.Load(id)
	if err != nil {
		slog.Error("load context failed", "conversation_id", id, "error", err)
		return replyStoreError
	}

	reply := o.route(ctx, conv, text)

	if err := o.store.PushHistory(id, types.RoleBot, reply); err != nil {
		slog.Error("push history failed", "conversation_id", id, "error", err)
	}
	return reply
}

func (o *Orchestrator) route(ctx context.Context, conv *types.Conversation, text string) string {
	id := conv.ID

	// Cancellation tokens work from any state.
	if nlu.IsCancel(text) {
		if conv.Idle() {
			return replyNothing
		}
		slog.Info("task cancelled", "conversation_id", id, "intent", conv.Intent)
		if err := o.store.EndTask(id); err != nil {
			return o.storeFailure(id, err)
		}
		return replyCancelled
	}

	if conv.Idle() {
		return o.handleIdle(ctx, conv, text)
	}

	schema, ok := o.registry.Get(conv.Intent)
	if !ok {
		// Unknown intent in the store means a stale record from an older
		// build; recover by resetting the task.
		slog.Warn("stored intent has no schema", "conversation_id", id, "intent", conv.Intent)
		if err := o.store.EndTask(id); err != nil {
			return o.storeFailure(id, err)
		}
		return replyFallbackTip
	}

	if conv.Stage == flow.StageConfirming {
		return o.handleConfirming(ctx, conv, schema, text)
	}
	return o.handleFilling(ctx, conv, schema, text)
}

// handleIdle classifies a fresh utterance and either replies
// conversationally, executes a single-shot intent, or begins a task and
// starts filling from the same utterance.
func (o *Orchestrator) handleIdle(ctx context.Context, conv *types.Conversation, text string) string {
	id := conv.ID

	cls := o.classifier.Classify(ctx, text, conv.History)
	slog.Debug("classified", "conversation_id", id, "intent", cls.Intent, "confidence", cls.Confidence)

	if cls.Intent == types.IntentNone {
		if reply := strings.TrimSpace(cls.Reply); reply != "" {
			return reply
		}
		return replyFallbackTip
	}

	schema, ok := o.registry.Get(cls.Intent)
	if !ok {
		return replyFallbackTip
	}

	if schema.SingleShot {
		fields := schema.SingleShotFields(text, o.now())
		extra := o.extractor.Extract(ctx, schema, text, "", fields)
		for k, v := range extra {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
		return o.execute(ctx, id, schema, fields, false)
	}

	if err := o.store.BeginTask(id, cls.Intent, nil); err != nil {
		return o.storeFailure(id, err)
	}
	conv.Intent = cls.Intent
	conv.Fields = types.Fields{}
	conv.Stage = ""
	return o.handleFilling(ctx, conv, schema, text)
}

// handleFilling merges newly extracted slots into the task and either
// prompts for the next missing slot, asks for confirmation, or executes.
func (o *Orchestrator) handleFilling(ctx context.Context, conv *types.Conversation, schema *flow.Schema, text string) string {
	id := conv.ID
	awaiting := strings.TrimPrefix(conv.Stage, flow.StagePrefix)
	if awaiting == conv.Stage {
		awaiting = ""
	}

	extracted := o.extractor.Extract(ctx, schema, text, conv.Stage, conv.Fields)

	// Merge policy: values grow monotonically within a task. A new value
	// only supersedes an existing one when that slot was explicitly
	// re-prompted.
	fields := conv.Fields.Clone()
	for k, v := range extracted {
		if _, exists := fields[k]; !exists || k == awaiting {
			fields[k] = v
		}
	}

	// The awaited slot did not get a valid value: re-prompt it rather
	// than advancing. Other fields gathered from the utterance are kept.
	if awaiting != "" {
		if slot := schema.Slot(awaiting); slot != nil {
			_, got := fields[awaiting]
			if !got && !(awaiting == "end_time" && hasField(fields, "start_time")) {
				if _, err := o.store.Update(id, store.Partial{Fields: fields}); err != nil {
					return o.storeFailure(id, err)
				}
				return slot.RepromptText()
			}
		}
	}

	if missing := schema.NextMissing(fields); missing != nil {
		stage := missing.Stage()
		if _, err := o.store.Update(id, store.Partial{Stage: &stage, Fields: fields}); err != nil {
			return o.storeFailure(id, err)
		}
		return missing.Prompt
	}

	if schema.RequiresConfirmation {
		stage := flow.StageConfirming
		if _, err := o.store.Update(id, store.Partial{Stage: &stage, Fields: fields}); err != nil {
			return o.storeFailure(id, err)
		}
		return schema.Summary(fields)
	}

	if _, err := o.store.Update(id, store.Partial{Fields: fields}); err != nil {
		return o.storeFailure(id, err)
	}
	return o.execute(ctx, id, schema, fields, true)
}

// handleConfirming parses the yes/no answer to a confirmation or retry
// question.
func (o *Orchestrator) handleConfirming(ctx context.Context, conv *types.Conversation, schema *flow.Schema, text string) string {
	id := conv.ID

	yes, ok := nlu.YesNo(text)
	if !ok {
		return replyYesNoAgain
	}
	if !yes {
		if err := o.store.EndTask(id); err != nil {
			return o.storeFailure(id, err)
		}
		return replyCancelled
	}
	return o.execute(ctx, id, schema, conv.Fields, true)
}

// execute builds and dispatches the command. tasked marks whether an
// active task backs the execution; single-shot intents run with
// tasked=false and never touch task state.
//
// The dispatcher runs at most once per completed task: success and
// permanent failure both end the task inside this same locked cycle, and
// recoverable failures park the task short of EXECUTING until the user
// answers again.
func (o *Orchestrator) execute(ctx context.Context, id types.ConversationID, schema *flow.Schema, fields types.Fields, tasked bool) string {
	cmd, data, err := schema.Build(fields, o.tz, o.now())
	if err != nil {
		slog.Warn("command build failed", "conversation_id", id, "intent", schema.Intent, "error", err)
		return o.dispatchFailure(id, schema, err, tasked)
	}

	slog.Info("dispatching", "conversation_id", id, "command", cmd)
	res, err := o.dispatcher.Execute(ctx, cmd, data)
	if err != nil {
		slog.Warn("dispatch failed", "conversation_id", id, "command", cmd, "kind", types.KindOf(err), "error", err)
		return o.dispatchFailure(id, schema, err, tasked)
	}

	if tasked {
		if err := o.store.EndTask(id); err != nil {
			return o.storeFailure(id, err)
		}
	}
	return schema.FormatResult(res, fields)
}

// dispatchFailure maps an execution error to the next state:
// input-invalid re-prompts the offending slot, transient keeps the task
// and offers a retry, permanent ends the task.
func (o *Orchestrator) dispatchFailure(id types.ConversationID, schema *flow.Schema, err error, tasked bool) string {
	kind := types.KindOf(err)

	if !tasked {
		if kind == types.KindTransient {
			return replyRetryAsk
		}
		return "❌ Não consegui concluir a ação agora."
	}

	switch kind {
	case types.KindInvalid:
		slotName := types.SlotOf(err)
		slot := schema.Slot(slotName)
		if slot == nil && len(schema.Slots) > 0 {
			slot = &schema.Slots[0]
		}
		stage := slot.Stage()
		if _, serr := o.store.Update(id, store.Partial{Stage: &stage}); serr != nil {
			return o.storeFailure(id, serr)
		}
		return "⚠️ " + slot.RepromptText()

	case types.KindTransient:
		stage := flow.StageConfirming
		if _, serr := o.store.Update(id, store.Partial{Stage: &stage}); serr != nil {
			return o.storeFailure(id, serr)
		}
		return replyRetryAsk

	default: // permanent
		if serr := o.store.EndTask(id); serr != nil {
			return o.storeFailure(id, serr)
		}
		return "❌ Não consegui concluir: " + shortError(err)
	}
}

func (o *Orchestrator) storeFailure(id types.ConversationID, err error) string {
	slog.Error("context store failure", "conversation_id", id, "error", err)
	return replyStoreError
}

func hasField(fields types.Fields, name string) bool {
	_, ok := fields[name]
	return ok
}

func shortError(err error) string {
	var e *types.Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "erro no serviço externo."
}
