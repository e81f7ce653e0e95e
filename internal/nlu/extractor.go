// internal/nlu/extractor.go
package nlu

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/user/amana/internal/flow"
	"github.com/user/amana/internal/types"
	"github.com/user/amana/pkg/llm"
)

// Extractor fills slots from an utterance, guided by the intent's schema.
// Deterministic pt-BR parsers run first; the LLM only sees slots the
// parsers could not settle. The result is always a strict subset of the
// schema with type-valid values.
type Extractor struct {
	provider llm.Provider
	prompts  *promptBuilder
	tz       *time.Location
	now      func() time.Time
}

// NewExtractor builds an Extractor over the given provider.
func NewExtractor(provider llm.Provider, model string, tz *time.Location) (*Extractor, error) {
	now := time.Now
	prompts, err := newPromptBuilder(model, tz, now)
	if err != nil {
		return nil, err
	}
	return &Extractor{provider: provider, prompts: prompts, tz: tz, now: now}, nil
}

// Extract returns the slots recognized in text. stage is the current
// conversation stage ("awaiting_<slot>" or empty); the awaited slot gets
// priority when a value could belong to more than one. existing holds the
// fields already collected, so slots that are settled don't trigger an
// LLM round trip.
func (e *Extractor) Extract(ctx context.Context, schema *flow.Schema, text, stage string, existing types.Fields) types.Fields {
	fields := types.Fields{}
	awaiting := strings.TrimPrefix(stage, flow.StagePrefix)
	if awaiting == stage {
		awaiting = ""
	}

	e.extractDeterministic(schema, text, awaiting, fields)

	// The awaited free-text slot swallows the whole utterance when the
	// parsers produced nothing for it ("Qual o título?" → "Alinhamento X").
	if awaiting != "" {
		if slot := schema.Slot(awaiting); slot != nil && slot.FreeText {
			if _, ok := fields[awaiting]; !ok {
				if trimmed := strings.TrimSpace(text); trimmed != "" {
					fields[awaiting] = trimmed
				}
			}
		}
	}

	if e.provider != nil && e.needsLLM(schema, fields, existing) {
		e.extractLLM(ctx, schema, text, fields)
	}

	// Never hand back keys outside the schema or values failing type
	// validation.
	for name, v := range fields {
		slot := schema.Slot(name)
		if slot == nil || slot.Validate(v) != nil {
			delete(fields, name)
		}
	}
	return fields
}

func (e *Extractor) extractDeterministic(schema *flow.Schema, text, awaiting string, fields types.Fields) {
	for i := range schema.Slots {
		slot := &schema.Slots[i]
		switch slot.Type {
		case flow.TypeEmailList:
			if OnlyMe(text) {
				fields[slot.Name] = []string{}
				continue
			}
			if emails := Emails(text); len(emails) > 0 {
				fields[slot.Name] = emails
			}
		case flow.TypeDate:
			if date, ok := ParseDate(text, e.tz, e.now()); ok {
				fields[slot.Name] = date
			}
		case flow.TypeInt:
			if n, ok := ParseCount(text); ok && n >= slot.Min && n <= slot.Max {
				fields[slot.Name] = n
			}
		}
	}

	if schema.Slot("start_time") != nil {
		if start, end, ok := ParseTimeRange(text); ok {
			fields["start_time"] = start
			fields["end_time"] = end
		} else if t, ok := ParseTime(text); ok {
			// A lone time fills whichever boundary is being awaited.
			if awaiting == "end_time" {
				fields["end_time"] = t
			} else {
				fields["start_time"] = t
			}
		}
	}
}

// needsLLM reports whether any required free-text slot is still
// unresolved. When the deterministic pass, the awaited-slot rule, and the
// already-collected fields cover everything, the LLM round trip is
// skipped.
func (e *Extractor) needsLLM(schema *flow.Schema, fields, existing types.Fields) bool {
	for _, slot := range schema.Slots {
		if !slot.FreeText || !slot.Required {
			continue
		}
		if _, ok := fields[slot.Name]; ok {
			continue
		}
		if _, ok := existing[slot.Name]; ok {
			continue
		}
		return true
	}
	return false
}

func (e *Extractor) extractLLM(ctx context.Context, schema *flow.Schema, text string, fields types.Fields) {
	messages := []llm.Message{
		{Role: "system", Content: e.prompts.extractPreamble(schema)},
		{Role: "user", Content: text},
	}
	resp, err := e.provider.Complete(ctx, messages)
	if err != nil {
		slog.Warn("extractor LLM call failed", "intent", schema.Intent, "error", err)
		return
	}
	body, ok := JSONSlice(resp.Content)
	if !ok {
		slog.Warn("extractor returned non-JSON output", "intent", schema.Intent)
		return
	}

	for _, slot := range schema.Slots {
		if _, done := fields[slot.Name]; done {
			// Deterministic wins over the model.
			continue
		}
		v := gjson.Get(body, slot.Name)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		switch slot.Type {
		case flow.TypeInt:
			fields[slot.Name] = int(v.Int())
		case flow.TypeEmailList, flow.TypeTagList:
			var list []string
			for _, item := range v.Array() {
				list = append(list, item.String())
			}
			if list == nil {
				list = []string{}
			}
			fields[slot.Name] = list
		default:
			if s := strings.TrimSpace(v.String()); s != "" {
				fields[slot.Name] = s
			}
		}
	}
}
