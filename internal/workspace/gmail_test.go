package workspace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func b64url(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/me/messages":
			if r.URL.Query().Get("q") != "is:unread" {
				t.Errorf("query = %s", r.URL.Query().Get("q"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "m1"}},
			})
		case r.URL.Path == "/users/me/messages/m1":
			json.NewEncoder(w).Encode(map[string]any{
				"payload": map[string]any{
					"headers": []map[string]string{
						{"name": "From", "value": "chefe@empresa.com"},
						{"name": "Subject", "value": "Status"},
					},
					"mimeType": "multipart/alternative",
					"parts": []map[string]any{
						{"mimeType": "text/plain", "body": map[string]string{"data": b64url("Como está o projeto?")}},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewWithHTTP(srv.Client(), srv.URL)
	emails, err := c.ListMessages(context.Background(), "is:unread", 3)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}

	if len(emails) != 1 {
		t.Fatalf("got %d emails", len(emails))
	}
	em := emails[0]
	if em.From != "chefe@empresa.com" || em.Subject != "Status" || em.Body != "Como está o projeto?" {
		t.Errorf("email = %+v", em)
	}
}

func TestExtractBody_PrefersPlainText(t *testing.T) {
	part := gmailPart{
		MimeType: "multipart/alternative",
		Parts: []gmailPart{
			{MimeType: "text/html"},
			{MimeType: "text/plain"},
		},
	}
	part.Parts[0].Body.Data = b64url("<p>olá</p>")
	part.Parts[1].Body.Data = b64url("olá")

	if got := extractBody(part); got != "olá" {
		t.Errorf("body = %q", got)
	}
}

func TestExtractBody_HTMLOnlyBecomesMarkdown(t *testing.T) {
	part := gmailPart{MimeType: "text/html"}
	part.Body.Data = b64url("<p>Veja o <strong>anexo</strong></p>")

	got := extractBody(part)
	if !strings.Contains(got, "**anexo**") {
		t.Errorf("expected markdown conversion, got %q", got)
	}
}

func TestSendMessage(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me/messages/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		raw = body["raw"]
		json.NewEncoder(w).Encode(map[string]string{"id": "sent-1"})
	}))
	defer srv.Close()

	c := NewWithHTTP(srv.Client(), srv.URL)
	id, err := c.SendMessage(context.Background(),
		[]string{"a@b.com", "c@d.com"}, "Relatório", "<p>Segue.</p>")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if id != "sent-1" {
		t.Errorf("id = %s", id)
	}

	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(raw)
	if err != nil {
		t.Fatalf("raw is not base64url: %v", err)
	}
	msg := string(decoded)
	for _, fragment := range []string{
		"To: a@b.com, c@d.com",
		"Subject: Relatório",
		"Content-Type: text/html; charset=utf-8",
		"<p>Segue.</p>",
	} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("message missing %q:\n%s", fragment, msg)
		}
	}
}
