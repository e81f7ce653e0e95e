package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/amana/internal/types"
	"github.com/user/amana/pkg/llm"
)

// fakeProvider returns a canned response, or an error when set.
type fakeProvider struct {
	content  string
	err      error
	messages []llm.Message
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func newTestClassifier(t *testing.T, p llm.Provider, threshold float64) *Classifier {
	t.Helper()
	c, err := NewClassifier(p, "gpt-4o-mini", saoPaulo, threshold)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	return c
}

func TestClassify_KnownIntent(t *testing.T) {
	p := &fakeProvider{content: `{"intent": "CREATE_EVENT", "confidence": 0.93, "reply": ""}`}
	c := newTestClassifier(t, p, 0.5)

	cls := c.Classify(context.Background(), "agende uma reunião amanhã", nil)
	if cls.Intent != types.IntentCreateEvent {
		t.Errorf("intent = %s", cls.Intent)
	}
	if cls.Confidence != 0.93 {
		t.Errorf("confidence = %v", cls.Confidence)
	}
}

func TestClassify_LowConfidenceBecomesNone(t *testing.T) {
	p := &fakeProvider{content: `{"intent": "SEND_EMAIL", "confidence": 0.3, "reply": "Você quer enviar um e-mail?"}`}
	c := newTestClassifier(t, p, 0.5)

	cls := c.Classify(context.Background(), "hmm o negócio do e-mail", nil)
	if cls.Intent != types.IntentNone {
		t.Errorf("low confidence must degrade to NONE, got %s", cls.Intent)
	}
	if cls.Reply != "Você quer enviar um e-mail?" {
		t.Errorf("reply should be preserved: %q", cls.Reply)
	}
}

func TestClassify_UnknownTagBecomesNone(t *testing.T) {
	p := &fakeProvider{content: `{"intent": "DANCE", "confidence": 0.99}`}
	c := newTestClassifier(t, p, 0.5)

	cls := c.Classify(context.Background(), "dance para mim", nil)
	if cls.Intent != types.IntentNone {
		t.Errorf("unknown tag must degrade to NONE, got %s", cls.Intent)
	}
}

func TestClassify_ProviderErrorDegradesToNone(t *testing.T) {
	p := &fakeProvider{err: errors.New("timeout")}
	c := newTestClassifier(t, p, 0.5)

	cls := c.Classify(context.Background(), "oi", nil)
	if cls.Intent != types.IntentNone || cls.Confidence != 0 {
		t.Errorf("provider failure must degrade to NONE/0, got %s/%v", cls.Intent, cls.Confidence)
	}
}

func TestClassify_ProseWrappedJSON(t *testing.T) {
	p := &fakeProvider{content: "Claro! Aqui está:\n```json\n{\"intent\": \"SHOW_AGENDA\", \"confidence\": 0.9}\n```"}
	c := newTestClassifier(t, p, 0.5)

	cls := c.Classify(context.Background(), "minha agenda", nil)
	if cls.Intent != types.IntentShowAgenda {
		t.Errorf("fenced JSON should still parse, got %s", cls.Intent)
	}
}

func TestClassify_HistoryIncludedInPrompt(t *testing.T) {
	p := &fakeProvider{content: `{"intent": "NONE", "confidence": 0}`}
	c := newTestClassifier(t, p, 0.5)

	history := []types.HistoryEntry{
		{Role: types.RoleUser, Text: "oi", At: time.Now()},
		{Role: types.RoleBot, Text: "Olá!", At: time.Now()},
	}
	c.Classify(context.Background(), "e aí", history)

	// system preamble + 2 history turns + current utterance
	if len(p.messages) != 4 {
		t.Errorf("expected 4 messages, got %d", len(p.messages))
	}
}

func TestJSONSlice(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`{"a": 1}`, `{"a": 1}`, true},
		{"prefixo {\"a\": 1} sufixo", `{"a": 1}`, true},
		{"sem json nenhum", "", false},
		{"{quebrado", "", false},
	}
	for _, tc := range cases {
		got, ok := JSONSlice(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Errorf("JSONSlice(%q) = (%q,%v), want (%q,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
