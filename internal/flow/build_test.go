package flow

import (
	"errors"
	"testing"
	"time"

	"github.com/user/amana/internal/types"
)

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return loc
}()

func TestBuild_CreateEvent(t *testing.T) {
	s := createEventSchema()
	now := time.Date(2026, 3, 24, 15, 0, 0, 0, saoPaulo)
	fields := types.Fields{
		"summary":    "Planejamento",
		"date":       "2026-03-25",
		"start_time": "09:00",
		"end_time":   "10:30",
		"attendees":  []string{"a@b.com"},
	}

	cmd, data, err := s.Build(fields, saoPaulo, now)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if cmd != types.CommandCreateEvent {
		t.Errorf("command = %s", cmd)
	}
	if data["summary"] != "Planejamento" {
		t.Errorf("summary = %v", data["summary"])
	}
	if data["start"] != "2026-03-25T09:00:00-03:00" {
		t.Errorf("start = %v", data["start"])
	}
	if data["end"] != "2026-03-25T10:30:00-03:00" {
		t.Errorf("end = %v", data["end"])
	}
}

func TestBuild_CreateEventEndDefaultsToStartPlusHour(t *testing.T) {
	s := createEventSchema()
	fields := types.Fields{
		"summary":    "X",
		"date":       "2026-03-25",
		"start_time": "23:30",
		"attendees":  []string{},
	}

	_, data, err := s.Build(fields, saoPaulo, time.Now())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if data["end"] != "2026-03-26T00:30:00-03:00" {
		t.Errorf("end should default to start+1h: %v", data["end"])
	}
}

func TestBuild_CreateEventBadDateIsInvalid(t *testing.T) {
	s := createEventSchema()
	fields := types.Fields{
		"summary":    "X",
		"date":       "amanhã",
		"start_time": "09:00",
	}
	_, _, err := s.Build(fields, saoPaulo, time.Now())
	var de *types.Error
	if !errors.As(err, &de) || de.Kind != types.KindInvalid || de.Slot != "date" {
		t.Fatalf("want invalid date slot error, got %v", err)
	}
}

func TestBuild_ReadEmailsDefaults(t *testing.T) {
	s := readEmailsSchema()
	_, data, err := s.Build(types.Fields{}, saoPaulo, time.Now())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if data["query"] != "is:unread" || data["max_results"] != 3 {
		t.Errorf("defaults = %v", data)
	}

	_, data, _ = s.Build(types.Fields{"query": "from:chefe", "max_results": 7}, saoPaulo, time.Now())
	if data["query"] != "from:chefe" || data["max_results"] != 7 {
		t.Errorf("overrides = %v", data)
	}
}

func TestBuild_SendEmailBodyKey(t *testing.T) {
	s := sendEmailSchema()
	fields := types.Fields{
		"to":      []string{"a@b.com"},
		"subject": "Oi",
		"body":    "<p>tudo bem?</p>",
	}
	_, data, err := s.Build(fields, saoPaulo, time.Now())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if data["body_html"] != "<p>tudo bem?</p>" {
		t.Errorf("body_html = %v", data["body_html"])
	}
	if _, ok := data["body"]; ok {
		t.Error("payload must carry body_html, not body")
	}
}

func TestSingleShotFields_SaveMemoryTitle(t *testing.T) {
	s := saveMemorySchema()
	now := time.Date(2026, 3, 24, 15, 0, 0, 0, saoPaulo)

	fields := s.SingleShotFields("lembre que o portão novo tem código 4321", now)
	if fields["title"] != "lembre que o portão novo tem" {
		t.Errorf("title should be the first six words: %v", fields["title"])
	}
	if fields["content"] != "lembre que o portão novo tem código 4321" {
		t.Errorf("content = %v", fields["content"])
	}

	fields = s.SingleShotFields("", now)
	if fields["title"] != "Memória 2026-03-24 15:00" {
		t.Errorf("empty utterance title = %v", fields["title"])
	}
}

func TestBuild_ShowAgendaMax(t *testing.T) {
	s := showAgendaSchema()
	_, data, _ := s.Build(types.Fields{}, saoPaulo, time.Now())
	if data["max"] != 5 {
		t.Errorf("default max = %v", data["max"])
	}
	_, data, _ = s.Build(types.Fields{"max": 2}, saoPaulo, time.Now())
	if data["max"] != 2 {
		t.Errorf("max = %v", data["max"])
	}
}
