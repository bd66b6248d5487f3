package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/session"
	"github.com/yuchingtsai/chatpad/internal/settings"
)

// AdminHandler serves the settings record: the public projection for the
// chat page and the full record for the admin panel.
type AdminHandler struct {
	source SettingsSource
	secret []byte
	logger log.Logger
}

// NewAdminHandler creates a new admin settings handler. secret verifies
// the signed admin cookie.
func NewAdminHandler(source SettingsSource, secret []byte, logger log.Logger) *AdminHandler {
	return &AdminHandler{source: source, secret: secret, logger: logger}
}

// RegisterRoutes registers settings routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.handlePublicConfig)
	mux.HandleFunc("GET /api/admin/config", h.handleGetConfig)
	mux.HandleFunc("POST /api/admin/config", h.handleUpdateConfig)
}

// handlePublicConfig returns the UI-facing subset of the settings record.
// Never requires auth and never exposes credentials.
func (h *AdminHandler) handlePublicConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.source.Load(r.Context())
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg.Public())
}

// handleGetConfig returns the full settings record, credentials included.
func (h *AdminHandler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	cfg, err := h.source.Load(r.Context())
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig merges recognized fields of the request body into the
// stored record and persists the whole record. Unknown fields are ignored,
// omitted fields keep their current value, and temperature is clamped.
func (h *AdminHandler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON settings object")
		return
	}

	ctx := r.Context()
	current, err := h.source.Load(ctx)
	if err != nil {
		h.logger.Error("loading settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not load settings")
		return
	}

	updated := current.Apply(patch)
	if err := h.source.Save(ctx, updated); err != nil {
		h.logger.Error("saving settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "store_unavailable", "could not save settings")
		return
	}

	h.logger.Info("settings updated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "settings saved"})
}

// authorized reports whether the request carries a valid admin cookie.
func (h *AdminHandler) authorized(r *http.Request) bool {
	return session.VerifyAdminToken(h.secret, session.AdminFromRequest(r), time.Now())
}
