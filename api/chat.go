package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yuchingtsai/chatpad/internal/chat"
	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/session"
)

// maxChatBody bounds the request body. Inline image data travels base64
// inside the JSON, so the limit is well above typical text payloads.
const maxChatBody = 10 << 20

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	source       SettingsSource
	history      HistoryStore
	completer    Completer
	contextTurns int
	logger       log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(source SettingsSource, history HistoryStore, completer Completer, contextTurns int, logger log.Logger) *ChatHandler {
	return &ChatHandler{
		source:       source,
		history:      history,
		completer:    completer,
		contextTurns: contextTurns,
		logger:       logger,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/new", h.handleNewChat)
}

// chatRequest is the request body for POST /api/chat. The last element of
// Contents is the new user message; earlier elements are ignored because
// the server keeps its own history.
type chatRequest struct {
	Contents []gemini.Content `json:"contents"`
}

// handleChat runs one conversation turn: resolve the session, assemble the
// upstream request from stored history, orchestrate tool calls, persist the
// exchange, and echo the upstream response body unchanged.
//
// The session cookie is only set on success, so a failed turn leaves both
// the visitor's token and their history exactly as they were.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a contents array")
		return
	}
	if len(req.Contents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "contents must not be empty")
		return
	}

	incoming := req.Contents[len(req.Contents)-1]
	if incoming.Role == "" {
		incoming.Role = gemini.RoleUser
	}

	sessionID, minted := session.Resolve(session.FromRequest(r))
	if minted {
		h.logger.Debug("minted new session", "session_id", sessionID)
	}

	ctx := r.Context()

	cfg, err := h.source.Load(ctx)
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not load settings")
		return
	}

	past, err := h.history.Load(ctx, sessionID)
	if err != nil {
		h.logger.Error("loading history failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not load history")
		return
	}

	upstream := chat.Assemble(past, cfg.SystemPrompt, incoming, h.contextTurns)

	result, err := h.completer.Complete(ctx, cfg, upstream)
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			h.logger.Warn("upstream rejected request", "status", apiErr.StatusCode, "message", apiErr.Message)
			writeError(w, apiErr.StatusCode, "upstream_error", apiErr.Message)
			return
		}
		h.logger.Error("upstream request failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "could not reach the model")
		return
	}

	// Only the final exchange is persisted; intermediate tool traffic is not.
	modelTurn := gemini.NewTextContent(gemini.RoleModel, result.Text)
	if err := h.history.Append(ctx, sessionID, incoming, modelTurn); err != nil {
		h.logger.Error("saving history failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not save history")
		return
	}

	http.SetCookie(w, session.Cookie(sessionID, r.TLS != nil))
	writeRaw(w, http.StatusOK, result.Raw)
}

// handleNewChat drops the session's history and expires its cookie. A
// request without a session cookie still succeeds.
func (h *ChatHandler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	if token := session.FromRequest(r); token != "" {
		id, minted := session.Resolve(token)
		if !minted {
			if err := h.history.Clear(r.Context(), id); err != nil {
				h.logger.Error("clearing history failed", "error", err, "session_id", id)
				writeError(w, http.StatusInternalServerError, "store_unavailable", "could not clear history")
				return
			}
		}
	}

	http.SetCookie(w, session.ExpiredCookie(r.TLS != nil))
	writeJSON(w, http.StatusOK, map[string]string{"message": "new chat started"})
}
