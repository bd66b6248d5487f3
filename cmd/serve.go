package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/yuchingtsai/chatpad/api"
	"github.com/yuchingtsai/chatpad/db"
	"github.com/yuchingtsai/chatpad/internal/chat"
	"github.com/yuchingtsai/chatpad/internal/config"
	"github.com/yuchingtsai/chatpad/internal/gemini"
	"github.com/yuchingtsai/chatpad/internal/history"
	"github.com/yuchingtsai/chatpad/internal/kvstore"
	"github.com/yuchingtsai/chatpad/internal/log"
	"github.com/yuchingtsai/chatpad/internal/search"
	"github.com/yuchingtsai/chatpad/internal/settings"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// runServe loads configuration, migrates the schema, and runs the HTTP
// server until SIGINT or SIGTERM.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	logger.Info("starting chatpad", "version", Version)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}

	kv := kvstore.New(pool, logger)
	source := settings.New(kv, logger)
	hist := history.New(kv, cfg.HistoryCap, cfg.HistoryTTL, logger)

	orchestrator := chat.NewOrchestrator(
		gemini.NewClient(nil, logger),
		search.New("", nil, logger),
		logger,
	)

	server := api.NewServer(cfg, pool, source, hist, orchestrator, logger)

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.Run(ctx, addr)
}
