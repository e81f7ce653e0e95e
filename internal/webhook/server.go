// internal/webhook/server.go
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/amana/internal/dispatch"
	"github.com/user/amana/internal/store"
	"github.com/user/amana/internal/types"
)

// UpdateHandler consumes one Telegram update after the HTTP layer has
// acknowledged it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Server is a lightweight HTTP handler for the bot's endpoints.
type Server struct {
	updates    UpdateHandler
	dispatcher *dispatch.Dispatcher
	contexts   *store.ContextStore
	execKey    string
	mux        *http.ServeMux
}

// NewServer creates a Server. execKey guards POST /amana/exec; requests
// without the matching key are rejected.
func NewServer(updates UpdateHandler, dispatcher *dispatch.Dispatcher, contexts *store.ContextStore, execKey string) *Server {
	s := &Server{
		updates:    updates,
		dispatcher: dispatcher,
		contexts:   contexts,
		execKey:    execKey,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /telegram/webhook", s.handleTelegram)
	s.mux.HandleFunc("POST /amana/exec", s.handleExec)
	s.mux.HandleFunc("GET /api/conversations", s.handleAPIConversations)
	s.mux.HandleFunc("GET /", s.handleIndex)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"service":   "amana",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTelegram acknowledges the update immediately; Telegram resends
// deliveries that do not get a prompt 200, and the dedup guard catches
// any resends that slip through anyway.
func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// Still ACK: a malformed body will never parse on retry either.
		slog.Warn("malformed telegram update", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusOK)

	go s.updates.HandleUpdate(context.Background(), update)
}

// execRequest is the JSON body for POST /amana/exec.
type execRequest struct {
	Key     string         `json:"key"`
	Command string         `json:"command"`
	Data    map[string]any `json:"data"`
}

// handleExec runs a command directly against the dispatcher, bypassing
// the dialog engine. Used for remote automation and smoke tests.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if s.execKey == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(s.execKey)) != 1 {
		http.Error(w, `{"status":"erro","message":"Chave inválida"}`, http.StatusForbidden)
		return
	}
	if req.Command == "" {
		http.Error(w, `{"error":"command is required"}`, http.StatusBadRequest)
		return
	}

	result, err := s.dispatcher.Execute(r.Context(), types.Command(req.Command), req.Data)
	if err != nil {
		slog.Error("exec command failed", "command", req.Command, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "erro", "message": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"command": req.Command,
		"result":  result,
	})
}

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent"`
	Stage          string `json:"stage"`
	HistoryLen     int    `json:"history_len"`
	LastUpdate     string `json:"last_update"`
}

func (s *Server) handleAPIConversations(w http.ResponseWriter, r *http.Request) {
	if s.contexts == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}
	conversations, err := s.contexts.List()
	if err != nil {
		slog.Error("list conversations failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		result = append(result, conversationResponse{
			ConversationID: string(conv.ID),
			Intent:         string(conv.Intent),
			Stage:          conv.Stage,
			HistoryLen:     len(conv.History),
			LastUpdate:     conv.LastUpdate.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "🔥 Amana online e funcional!",
		"endpoints": map[string]string{
			"health":   "/healthz",
			"telegram": "/telegram/webhook",
			"exec":     "/amana/exec",
		},
	})
}
