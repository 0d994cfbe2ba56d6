// Package api serves the chat JSON API over HTTP and the MCP tool surface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/sonarchat/internal/credential"
	"github.com/kalambet/sonarchat/internal/instructions"
	"github.com/kalambet/sonarchat/internal/llm"
	"github.com/kalambet/sonarchat/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds what the HTTP handler needs.
type Deps struct {
	Sessions      *session.Manager
	SecureCookies bool
}

// NewHandler returns the HTTP API. Every route under /api except /api/models
// runs inside a browser scope and a UI session identified by cookies.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", handleModels)

		r.Group(func(r chi.Router) {
			r.Use(withSession(deps))

			r.Get("/session", handleSession(deps))
			r.Post("/login", handleLogin(deps))
			r.Post("/logout", handleLogout(deps))

			r.Group(func(r chi.Router) {
				r.Use(requireLogin)

				r.Get("/conversations", handleListConversations(deps))
				r.Post("/conversations", handleNewConversation(deps))
				r.Post("/conversations/current/clear", handleClearConversation(deps))
				r.Get("/conversations/{id}", handleGetConversation(deps))
				r.Delete("/conversations/{id}", handleDeleteConversation(deps))
				r.Post("/conversations/{id}/select", handleSelectConversation(deps))

				r.Post("/messages", handleSendMessage(deps))

				r.Get("/instructions", handleListInstructions(deps))
				r.Post("/instructions", handleCreateInstruction(deps))
				r.Put("/instructions/{name}", handleUpdateInstruction(deps))
				r.Delete("/instructions/{name}", handleDeleteInstruction(deps))
				r.Post("/instructions/{name}/select", handleSelectInstruction(deps))

				r.Put("/settings/model", handleSetModel(deps))
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		code, errType := http.StatusBadGateway, "api_error"
		if apiErr.Kind == llm.Unauthenticated {
			code, errType = http.StatusUnauthorized, "authentication_error"
		}
		writeJSON(w, code, map[string]any{
			"error": map[string]any{
				"message": apiErr.Error(),
				"type":    errType,
				"kind":    apiErr.Kind,
				"detail":  apiErr.Detail,
			},
		})
		return
	}

	switch {
	case errors.Is(err, session.ErrUnknownConversation), errors.Is(err, instructions.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, credential.ErrInvalidCredential),
		errors.Is(err, credential.ErrNoDefaultKey):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	case errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrUnknownModel),
		errors.Is(err, credential.ErrEmptyCredential),
		errors.Is(err, instructions.ErrEmpty),
		errors.Is(err, instructions.ErrExists),
		errors.Is(err, instructions.ErrReserved):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
