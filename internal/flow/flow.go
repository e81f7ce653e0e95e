// internal/flow/flow.go
package flow

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/user/amana/internal/types"
)

// SlotType constrains how a slot value is validated and extracted.
type SlotType string

const (
	TypeString    SlotType = "string"
	TypeDate      SlotType = "date"  // "2006-01-02"
	TypeTime      SlotType = "time"  // "15:04"
	TypeInt       SlotType = "int"
	TypeEmailList SlotType = "email_list"
	TypeTagList   SlotType = "tag_list"
)

// Stage labels used by the orchestrator. Slot stages are
// StagePrefix+<slot name>.
const (
	StagePrefix     = "awaiting_"
	StageConfirming = "confirming"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s matches the address shape the extractor
// and validators agree on.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// Slot is a named, typed parameter required by an intent.
type Slot struct {
	Name     string
	Type     SlotType
	Required bool
	// Prompt asks the user for the slot; Reprompt is used after a
	// rejected value. Reprompt falls back to Prompt when empty.
	Prompt   string
	Reprompt string
	// FreeText slots take the whole utterance as their value when the
	// conversation is awaiting them (titles, subjects, bodies).
	FreeText bool
	// Min/Max bound TypeInt values.
	Min, Max int
}

// Stage returns the stage label for this slot.
func (s *Slot) Stage() string { return StagePrefix + s.Name }

// RepromptText returns Reprompt, or Prompt when no Reprompt is set.
func (s *Slot) RepromptText() string {
	if s.Reprompt != "" {
		return s.Reprompt
	}
	return s.Prompt
}

// Validate checks a candidate value against the slot type. Invalid values
// are rejected at assignment time and trigger a re-prompt; they never
// overwrite existing fields.
func (s *Slot) Validate(v any) error {
	switch s.Type {
	case TypeString:
		str, ok := v.(string)
		if !ok || strings.TrimSpace(str) == "" {
			return fmt.Errorf("slot %s: expected non-empty text", s.Name)
		}
	case TypeDate:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("slot %s: expected date string", s.Name)
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("slot %s: bad date %q", s.Name, str)
		}
	case TypeTime:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("slot %s: expected time string", s.Name)
		}
		if _, err := time.Parse("15:04", str); err != nil {
			return fmt.Errorf("slot %s: bad time %q", s.Name, str)
		}
	case TypeInt:
		n, ok := asInt(v)
		if !ok {
			return fmt.Errorf("slot %s: expected integer", s.Name)
		}
		if s.Min != 0 || s.Max != 0 {
			if n < s.Min || n > s.Max {
				return fmt.Errorf("slot %s: %d out of range [%d,%d]", s.Name, n, s.Min, s.Max)
			}
		}
	case TypeEmailList:
		list, ok := asStringList(v)
		if !ok {
			return fmt.Errorf("slot %s: expected list of addresses", s.Name)
		}
		for _, addr := range list {
			if !ValidEmail(addr) {
				return fmt.Errorf("slot %s: invalid address %q", s.Name, addr)
			}
		}
	case TypeTagList:
		if _, ok := asStringList(v); !ok {
			return fmt.Errorf("slot %s: expected list of tags", s.Name)
		}
	default:
		return fmt.Errorf("slot %s: unknown type %s", s.Name, s.Type)
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// Schema describes one intent: its slots, completion rules, and the
// dispatcher command it builds on completion.
type Schema struct {
	Intent types.Intent
	Slots  []Slot
	// RequiresConfirmation inserts a yes/no summary step before dispatch.
	RequiresConfirmation bool
	// SingleShot intents execute immediately from the triggering
	// utterance, with no slot filling.
	SingleShot bool
	Command    types.Command
}

// Slot returns the named slot, or nil.
func (s *Schema) Slot(name string) *Slot {
	for i := range s.Slots {
		if s.Slots[i].Name == name {
			return &s.Slots[i]
		}
	}
	return nil
}

// Has reports whether name belongs to this schema. The extractor discards
// keys outside the schema, keeping dom(fields) ⊆ slots(intent).
func (s *Schema) Has(name string) bool {
	return s.Slot(name) != nil
}

// NextMissing returns the first required slot not yet present in fields,
// or nil when the task is ready. end_time is satisfied by start_time
// alone; it defaults to start+1h when the command is built.
func (s *Schema) NextMissing(fields types.Fields) *Slot {
	for i := range s.Slots {
		slot := &s.Slots[i]
		if !slot.Required {
			continue
		}
		if _, ok := fields[slot.Name]; ok {
			continue
		}
		if slot.Name == "end_time" {
			if _, ok := fields["start_time"]; ok {
				continue
			}
		}
		return slot
	}
	return nil
}

// Complete is the completion predicate: all required slots present (or
// defaultable) and valid.
func (s *Schema) Complete(fields types.Fields) bool {
	if s.NextMissing(fields) != nil {
		return false
	}
	for i := range s.Slots {
		slot := &s.Slots[i]
		v, ok := fields[slot.Name]
		if !ok {
			continue
		}
		if err := slot.Validate(v); err != nil {
			return false
		}
	}
	return true
}

// Registry holds the static schema for each registered intent.
type Registry struct {
	schemas map[types.Intent]*Schema
}

// Get returns the schema for intent.
func (r *Registry) Get(intent types.Intent) (*Schema, bool) {
	s, ok := r.schemas[intent]
	return s, ok
}

// All returns every registered schema.
func (r *Registry) All() []*Schema {
	out := make([]*Schema, 0, len(r.schemas))
	for _, it := range types.Intents() {
		if s, ok := r.schemas[it]; ok {
			out = append(out, s)
		}
	}
	return out
}
