// Package api provides the HTTP surface of chatpad.
//
// Endpoints:
//
//	POST /api/chat          → run one chat turn against the upstream model
//	POST /api/chat/new      → drop the session's history, start over
//	GET  /api/config        → public UI settings (no auth)
//	GET  /api/admin/config  → full settings record (admin cookie)
//	POST /api/admin/config  → merge and persist settings (admin cookie)
//	POST /api/login         → exchange admin credentials for a signed cookie
//	GET  /health            → liveness probe
//	GET  /ready             → readiness probe (pings the store)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: Health check endpoints (/health, /ready)
//   - chat.go: Chat and new-chat endpoints
//   - admin.go: Public and admin settings endpoints
//   - auth.go: Admin login endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yuchingtsai/chatpad/internal/chat"
	"github.com/yuchingtsai/chatpad/internal/config"
	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/settings"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Chat turns can involve two upstream round trips, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// SettingsSource reads and writes the application settings record.
// *settings.Accessor satisfies it.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, s settings.Settings) error
}

// HistoryStore reads and writes per-session conversation history.
// *history.Store satisfies it.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]gemini.Content, error)
	Append(ctx context.Context, sessionID string, turns ...gemini.Content) error
	Clear(ctx context.Context, sessionID string) error
}

// Completer runs one assembled request through the model and resolves tool
// calls. *chat.Orchestrator satisfies it.
type Completer interface {
	Complete(ctx context.Context, s settings.Settings, req *gemini.GenerateRequest) (*chat.Result, error)
}

// Server is chatpad's HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health *HealthHandler
	chat   *ChatHandler
	admin  *AdminHandler
	auth   *AuthHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, pool *pgxpool.Pool, source SettingsSource, hist HistoryStore, completer Completer, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(pool, logger),
		chat:   NewChatHandler(source, hist, completer, cfg.ContextTurns, logger),
		admin:  NewAdminHandler(source, []byte(cfg.CookieSecret), logger),
		auth:   NewAuthHandler(cfg, logger),
	}

	// Register all routes
	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.admin.RegisterRoutes(mux)
	s.auth.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = config.DefaultListenAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
