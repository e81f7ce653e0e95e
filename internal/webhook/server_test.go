package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/amana/internal/dispatch"
	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/workspace"
)

type recordingUpdates struct {
	got chan tgbotapi.Update
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, update tgbotapi.Update) {
	r.got <- update
}

func newTestServer(t *testing.T, execKey string) (*Server, *recordingUpdates, *store.ContextStore) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}))
	t.Cleanup(backend.Close)

	ws := workspace.NewWithHTTP(backend.Client(), backend.URL)
	d := dispatch.New(ws, time.UTC, "", "")
	updates := &recordingUpdates{got: make(chan tgbotapi.Update, 1)}
	contexts := store.New(t.TempDir())
	return NewServer(updates, d, contexts, execKey), updates, contexts
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, "k")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "amana" {
		t.Errorf("body = %v", body)
	}
}

func TestIndexBanner(t *testing.T) {
	s, _, _ := newTestServer(t, "k")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "Amana online e funcional") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestTelegramWebhookAcksAndForwards(t *testing.T) {
	s, updates, _ := newTestServer(t, "k")

	update := map[string]any{
		"update_id": 42,
		"message": map[string]any{
			"message_id": 1,
			"chat":       map[string]any{"id": 123},
			"text":       "oi",
		},
	}
	payload, _ := json.Marshal(update)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case got := <-updates.got:
		if got.UpdateID != 42 {
			t.Errorf("update id = %d", got.UpdateID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the handler")
	}
}

func TestTelegramWebhookAcksMalformedBody(t *testing.T) {
	s, updates, _ := newTestServer(t, "k")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{not json")))

	if rec.Code != http.StatusOK {
		t.Fatalf("malformed body must still be acknowledged, status = %d", rec.Code)
	}
	select {
	case <-updates.got:
		t.Fatal("malformed update must not reach the handler")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExecRejectsBadKey(t *testing.T) {
	s, _, _ := newTestServer(t, "secret")

	body := `{"key":"wrong","command":"SHOW_AGENDA"}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/amana/exec", strings.NewReader(body)))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestExecRejectsWhenKeyUnconfigured(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	body := `{"key":"","command":"SHOW_AGENDA"}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/amana/exec", strings.NewReader(body)))

	if rec.Code != http.StatusForbidden {
		t.Errorf("an unconfigured key must reject everything, status = %d", rec.Code)
	}
}

func TestExecRunsCommand(t *testing.T) {
	s, _, _ := newTestServer(t, "secret")

	body := `{"key":"secret","command":"SHOW_AGENDA","data":{"max":3}}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/amana/exec", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status  string `json:"status"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Command != "SHOW_AGENDA" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecFailureReturns500(t *testing.T) {
	s, _, _ := newTestServer(t, "secret")

	body := `{"key":"secret","command":"NO_SUCH_COMMAND"}`
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/amana/exec", strings.NewReader(body)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"erro"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAPIConversations(t *testing.T) {
	s, _, contexts := newTestServer(t, "k")

	if err := contexts.PushHistory("123", "user", "oi"); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []conversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ConversationID != "123" || list[0].HistoryLen != 1 {
		t.Errorf("list = %+v", list)
	}
}
