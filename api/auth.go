package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yuchingtsai/chatpad/internal/config"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/session"
)

// AuthHandler handles the admin login endpoint.
type AuthHandler struct {
	cfg    *config.Config
	logger log.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(cfg *config.Config, logger log.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes registers auth routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.handleLogin)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin checks the submitted credentials against the configured admin
// account and, on success, sets a signed short-lived admin cookie. Failures
// get a bare 401 with no hint about which part was wrong.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with username and password")
		return
	}

	if !h.credentialsValid(req.Username, req.Password) {
		h.logger.Warn("failed admin login", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	token := session.SignAdminToken([]byte(h.cfg.CookieSecret), time.Now())
	http.SetCookie(w, session.AdminCookie(token, r.TLS != nil))
	h.logger.Info("admin login")
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged in"})
}

// credentialsValid compares both fields even when the username already
// mismatched, keeping the timing independent of which field was wrong.
func (h *AuthHandler) credentialsValid(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.AdminUser)) == 1

	var passOK bool
	if h.cfg.AdminPassIsHash() {
		passOK = bcrypt.CompareHashAndPassword([]byte(h.cfg.AdminPass), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(h.cfg.AdminPass)) == 1
	}

	return userOK && passOK
}
