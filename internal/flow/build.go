// internal/flow/build.go
package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/amana/internal/types"
)

const (
	defaultEmailQuery = "is:unread"
	defaultEmailCount = 3
	defaultAgendaMax  = 5
)

// Build maps collected fields to the dispatcher payload for this schema's
// command. It is only called once the completion predicate holds.
func (s *Schema) Build(fields types.Fields, loc *time.Location, now time.Time) (types.Command, map[string]any, error) {
	switch s.Intent {
	case types.IntentCreateEvent:
		data, err := buildCreateEvent(fields, loc)
		return s.Command, data, err
	case types.IntentReadEmails:
		return s.Command, buildReadEmails(fields), nil
	case types.IntentSendEmail:
		return s.Command, buildSendEmail(fields), nil
	case types.IntentSaveMemory:
		return s.Command, buildSaveMemory(fields, now), nil
	case types.IntentShowAgenda:
		return s.Command, buildShowAgenda(fields), nil
	}
	return "", nil, fmt.Errorf("no builder for intent %s", s.Intent)
}

// SingleShotFields derives the fields a single-shot intent executes with
// from the triggering utterance.
func (s *Schema) SingleShotFields(utterance string, now time.Time) types.Fields {
	switch s.Intent {
	case types.IntentSaveMemory:
		return types.Fields{
			"title":   memoryTitle(utterance, now),
			"content": utterance,
			"tags":    []string{"telegram"},
		}
	case types.IntentShowAgenda:
		return types.Fields{}
	}
	return types.Fields{}
}

func memoryTitle(utterance string, now time.Time) string {
	words := strings.Fields(utterance)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = "Memória " + now.Format("2006-01-02 15:04")
	}
	return title
}

func buildCreateEvent(fields types.Fields, loc *time.Location) (map[string]any, error) {
	date, _ := fields["date"].(string)
	startStr, _ := fields["start_time"].(string)
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, &types.Error{Kind: types.KindInvalid, Slot: "date", Msg: "bad date", Err: err}
	}
	startClock, err := time.Parse("15:04", startStr)
	if err != nil {
		return nil, &types.Error{Kind: types.KindInvalid, Slot: "start_time", Msg: "bad start time", Err: err}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(),
		startClock.Hour(), startClock.Minute(), 0, 0, loc)

	// end_time defaults to start+1h, applied only here, at completion.
	end := start.Add(time.Hour)
	if endStr, ok := fields["end_time"].(string); ok {
		endClock, err := time.Parse("15:04", endStr)
		if err != nil {
			return nil, &types.Error{Kind: types.KindInvalid, Slot: "end_time", Msg: "bad end time", Err: err}
		}
		end = time.Date(day.Year(), day.Month(), day.Day(),
			endClock.Hour(), endClock.Minute(), 0, 0, loc)
	}

	data := map[string]any{
		"summary": fields["summary"],
		"start":   start.Format(time.RFC3339),
		"end":     end.Format(time.RFC3339),
	}
	if attendees, ok := fields["attendees"]; ok {
		data["attendees"] = attendees
	}
	if desc, ok := fields["description"]; ok {
		data["description"] = desc
	}
	return data, nil
}

func buildReadEmails(fields types.Fields) map[string]any {
	query := defaultEmailQuery
	if q, ok := fields["query"].(string); ok && q != "" {
		query = q
	}
	max := defaultEmailCount
	if n, ok := asInt(fields["max_results"]); ok {
		max = n
	}
	return map[string]any{"query": query, "max_results": max}
}

func buildSendEmail(fields types.Fields) map[string]any {
	to, _ := asStringList(fields["to"])
	body, _ := fields["body"].(string)
	return map[string]any{
		"to":        to,
		"subject":   fields["subject"],
		"body_html": body,
	}
}

func buildSaveMemory(fields types.Fields, now time.Time) map[string]any {
	title, _ := fields["title"].(string)
	if title == "" {
		title = "Memória " + now.Format("2006-01-02 15:04")
	}
	data := map[string]any{
		"title":   title,
		"content": fields["content"],
	}
	if tags, ok := asStringList(fields["tags"]); ok && len(tags) > 0 {
		data["tags"] = tags
	}
	return data
}

func buildShowAgenda(fields types.Fields) map[string]any {
	max := defaultAgendaMax
	if n, ok := asInt(fields["max"]); ok {
		max = n
	}
	return map[string]any{"max": max}
}
