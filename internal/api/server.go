// Package api exposes the HTTP surface: the streaming chat endpoint, history
// retrieval and session CRUD.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/webchat-agent/server/internal/agent/graph"
	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/core/errx"
	"github.com/webchat-agent/server/internal/session"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// Server holds the handler dependencies.
type Server struct {
	cache      *graph.Cache
	dispatcher *graph.Dispatcher
	manager    *conversations.Manager
	sessions   *session.Store
}

func NewServer(cache *graph.Cache, dispatcher *graph.Dispatcher, manager *conversations.Manager, sessions *session.Store) *Server {
	return &Server{
		cache:      cache,
		dispatcher: dispatcher,
		manager:    manager,
		sessions:   sessions,
	}
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat", s.handleHistory)

	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/session/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/session/{id}", s.handleRenameSession)
	mux.HandleFunc("DELETE /api/session/{id}", s.handleDeleteSession)

	return withCORS(mux)
}

// withCORS lets the browser UI talk to the API from a different origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps an error to its HTTP status using the errx metadata and
// falls back to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := errx.SystemErrorMessage

	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		message = appErr.Message
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}
