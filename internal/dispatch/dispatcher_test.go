package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/amana/internal/types"
	"github.com/user/amana/internal/workspace"
)

func newTestDispatcher(t *testing.T, handler http.Handler, spreadsheetID string) (*Dispatcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ws := workspace.NewWithHTTP(srv.Client(), srv.URL)
	d := New(ws, time.UTC, "folder-1", spreadsheetID)
	d.now = func() time.Time { return time.Date(2026, 3, 24, 15, 0, 0, 0, time.UTC) }
	return d, srv
}

func TestExecute_UnknownCommandIsPermanent(t *testing.T) {
	d, _ := newTestDispatcher(t, http.NotFoundHandler(), "")

	_, err := d.Execute(context.Background(), types.Command("DELETE_EVERYTHING"), nil)
	var de *types.Error
	if !errors.As(err, &de) || de.Kind != types.KindPermanent {
		t.Fatalf("want permanent error, got %v", err)
	}
}

func TestExecute_MissingRequiredKeyIsInvalid(t *testing.T) {
	d, _ := newTestDispatcher(t, http.NotFoundHandler(), "")

	_, err := d.Execute(context.Background(), types.CommandCreateEvent, map[string]any{
		"summary": "X", "start": "2026-03-25T09:00:00Z",
	})
	var de *types.Error
	if !errors.As(err, &de) || de.Kind != types.KindInvalid {
		t.Fatalf("want invalid error, got %v", err)
	}
	if !strings.Contains(de.Msg, "end") {
		t.Errorf("message should name the missing key: %s", de.Msg)
	}
}

func TestExecute_CreateEvent(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id": "ev-1", "summary": "X", "htmlLink": "https://cal/ev-1",
		})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandCreateEvent, map[string]any{
		"summary": "X",
		"start":   "2026-03-25T09:00:00Z",
		"end":     "2026-03-25T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.OK || res.ID != "ev-1" || res.Payload["link"] != "https://cal/ev-1" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecute_ReadEmailsClampsMax(t *testing.T) {
	var gotMax string
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("maxResults")
		json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandReadEmails, map[string]any{
		"max_results": 50,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotMax != "10" {
		t.Errorf("max should clamp to 10, got %s", gotMax)
	}
	if list, ok := res.Payload["emails"].([]map[string]any); !ok || len(list) != 0 {
		t.Errorf("payload = %v", res.Payload)
	}
}

func TestExecute_SendEmailAcceptsBareString(t *testing.T) {
	var raw map[string]string
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(map[string]string{"id": "sent-1"})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandSendEmail, map[string]any{
		"to":        "a@b.com",
		"subject":   "Oi",
		"body_html": "<p>tudo bem?</p>",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ID != "sent-1" {
		t.Errorf("result = %+v", res)
	}
	if raw["raw"] == "" {
		t.Error("gmail send payload missing raw message")
	}
}

func TestExecute_SaveMemoryAppendsToSheet(t *testing.T) {
	var gotPath string
	var body struct {
		Values [][]any `json:"values"`
	}
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{}`))
	}), "sheet-1")

	res, err := d.Execute(context.Background(), types.CommandSaveMemory, map[string]any{
		"title":   "código do portão",
		"content": "4321",
		"tags":    []string{"casa", "telegram"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Payload["title"] != "código do portão" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-1/values/") {
		t.Errorf("path = %s", gotPath)
	}
	if len(body.Values) != 1 || len(body.Values[0]) != 4 {
		t.Fatalf("values = %v", body.Values)
	}
	row := body.Values[0]
	if row[0] != "2026-03-24 15:00:00" || row[1] != "código do portão" || row[3] != "casa,telegram" {
		t.Errorf("row = %v", row)
	}
}

func TestExecute_SaveMemoryFallsBackToDrive(t *testing.T) {
	var uploadHit bool
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploadHit = true
		json.NewEncoder(w).Encode(map[string]string{"id": "f-1", "name": "m.txt"})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandSaveMemory, map[string]any{
		"title": "nota", "content": "texto",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !uploadHit || res.ID != "f-1" {
		t.Errorf("result = %+v (uploadHit=%v)", res, uploadHit)
	}
}

func TestExecute_ShowAgenda(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maxResults") != "2" {
			t.Errorf("maxResults = %s", r.URL.Query().Get("maxResults"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"summary": "Dentista", "start": map[string]string{"dateTime": "2026-03-24T18:00:00Z"}},
			},
		})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandShowAgenda, map[string]any{"max": 2})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	events, ok := res.Payload["events"].([]map[string]any)
	if !ok || len(events) != 1 {
		t.Fatalf("payload = %v", res.Payload)
	}
	if events[0]["summary"] != "Dentista" || events[0]["start_time"] != "18:00" {
		t.Errorf("events[0] = %v", events[0])
	}
}

func TestExecute_SaveFile(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id": "f-9", "name": "nota.txt", "webViewLink": "https://drive/f-9",
		})
	}), "")

	res, err := d.Execute(context.Background(), types.CommandSaveFile, map[string]any{
		"name": "nota.txt",
		"text": "conteúdo",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Payload["link"] != "https://drive/f-9" {
		t.Errorf("result = %+v", res)
	}

	_, err = d.Execute(context.Background(), types.CommandSaveFile, map[string]any{
		"name": "x.bin", "base64": "not!!b64",
	})
	var de *types.Error
	if !errors.As(err, &de) || de.Kind != types.KindInvalid {
		t.Errorf("bad base64 should be invalid, got %v", err)
	}

	_, err = d.Execute(context.Background(), types.CommandSaveFile, map[string]any{"name": "vazio.txt"})
	if !errors.As(err, &de) || de.Kind != types.KindInvalid {
		t.Errorf("contentless file should be invalid, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("código do portão!"); got != "cdigo_do_porto" {
		t.Errorf("sanitizeName = %q", got)
	}
	long := strings.Repeat("a", 60)
	if got := sanitizeName(long); len(got) != 40 {
		t.Errorf("len = %d", len(got))
	}
}
