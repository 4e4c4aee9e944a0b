// Package api hosts the development surfaces around the assistant core: a
// mock assistant backend for offline work and integration tests, and an MCP
// server exposing the assistant as tools.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBodySize bounds the mock upload endpoint. Slightly above the
// client-side 10 MiB attachment limit to leave room for multipart framing.
const maxUploadBodySize = 11 << 20

// MockDeps configures the mock assistant backend.
type MockDeps struct {
	// Token enables bearer auth when non-empty.
	Token string
}

// mockState tracks per-conversation pending deletions so the confirm/cancel
// flow round-trips like the real backend.
type mockState struct {
	mu      sync.Mutex
	pending map[string]string // conversation ID -> target description
}

// NewMockHandler returns an http.Handler implementing the three assistant
// endpoints with canned pharmacy-domain behavior. Delete requests demand
// confirmation; everything else gets a templated reply with suggestions.
func NewMockHandler(deps MockDeps) http.Handler {
	state := &mockState{pending: make(map[string]string)}

	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Post("/ai-assistant/upload-document", handleUploadDocument())
	r.Post("/ai-assistant/chat", handleChat(state))
	r.Delete("/ai-assistant/conversations/{id}", handleDeleteConversation(state))

	return r
}

func handleUploadDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		file, header, err := r.FormFile("document")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "missing document field: %v", err)
			return
		}
		defer file.Close()

		size, err := io.Copy(io.Discard, file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading document: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success": true,
			"data": map[string]any{
				"url": "mock://documents/" + uuid.New().String(),
				"analysis": map[string]any{
					"summary": fmt.Sprintf("Document %q received (%d bytes). Looks like an invoice.", header.Filename, size),
					"suggestions": []string{
						"Add this invoice",
						"Show invoice history",
					},
				},
			},
		})
	}
}

type chatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversationId"`
	Documents      []string `json:"documents"`
}

func handleChat(state *mockState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		convID := req.ConversationID
		if convID == "" {
			convID = uuid.New().String()
		}

		start := time.Now()
		data := state.reply(convID, req)
		data["processingTime"] = time.Since(start).Milliseconds()
		data["conversationId"] = convID

		writeJSON(w, map[string]any{"success": true, "data": data})
	}
}

// reply implements the mock's tiny intent model: pending deletions resolve on
// confirm/cancel wording, delete requests arm a confirmation, everything else
// echoes with generic suggestions.
func (s *mockState) reply(convID string, req chatRequest) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := strings.ToLower(req.Message)

	if target, ok := s.pending[convID]; ok {
		switch {
		case strings.Contains(msg, "yes") || strings.Contains(msg, "confirm"):
			delete(s.pending, convID)
			return map[string]any{
				"response":       fmt.Sprintf("Done. %s has been deleted.", target),
				"intent":         "delete_confirmed",
				"confidence":     0.99,
				"actionExecuted": true,
				"actionResult":   fmt.Sprintf("deleted %s", target),
				"suggestions":    []string{"View customers", "Show me dashboard"},
			}
		case strings.Contains(msg, "no") || strings.Contains(msg, "cancel"):
			delete(s.pending, convID)
			return map[string]any{
				"response":    fmt.Sprintf("Okay, I won't touch %s.", target),
				"intent":      "delete_cancelled",
				"confidence":  0.99,
				"suggestions": []string{"View customers", "Help"},
			}
		}
		// Free text while awaiting confirmation is answered, and the
		// confirmation stays armed server-side.
	}

	if strings.Contains(msg, "delete") {
		target := "the selected customer"
		if id := trailingNumber(msg); id != "" {
			target = "customer " + id
		}
		s.pending[convID] = target
		return map[string]any{
			"response":             fmt.Sprintf("This will permanently delete %s. Are you sure?", target),
			"intent":               "delete_customer",
			"confidence":           0.95,
			"requiresConfirmation": true,
			"confirmationData": map[string]any{
				"targetDescription": target,
			},
			"followUpActions": []map[string]any{
				{"label": "Yes, delete", "action": "confirm_delete"},
				{"label": "No, keep it", "action": "cancel_delete"},
			},
		}
	}

	resp := map[string]any{
		"response":     fmt.Sprintf("You said: %q. I can look up customers, invoices, or stock for you.", req.Message),
		"intent":       "general",
		"confidence":   0.5,
		"suggestions":  []string{"View customers", "Search customers", "Customer analytics"},
		"quickActions": []string{"Show me dashboard"},
		"followUpActions": []map[string]any{
			{"label": "View customers", "action": "view_customers"},
		},
	}
	if len(req.Documents) > 0 {
		resp["response"] = fmt.Sprintf("I've read your %d document(s). Want me to file them as invoices?", len(req.Documents))
		resp["intent"] = "document_review"
	}
	return resp
}

func handleDeleteConversation(state *mockState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		state.mu.Lock()
		delete(state.pending, id)
		state.mu.Unlock()
		writeJSON(w, map[string]any{"success": true})
	}
}

// trailingNumber returns the last all-digit token of s, or "".
func trailingNumber(s string) string {
	fields := strings.Fields(s)
	for i := len(fields) - 1; i >= 0; i-- {
		token := strings.Trim(fields[i], ".,!?")
		if token == "" {
			continue
		}
		allDigits := true
		for _, r := range token {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return token
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": msg,
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
