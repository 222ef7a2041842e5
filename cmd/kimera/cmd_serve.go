package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kimera/internal/api"
	"kimera/internal/config"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Kimera SWM HTTP API",
	Long: `Opens the vault and serves the semantic working memory API.

The server runs until interrupted (SIGINT/SIGTERM) and shuts down
gracefully. With --watch the config file is monitored and logging
settings are reloaded on change.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload logging settings when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	dbPath := cfg.Vault.DatabasePath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	v, err := vault.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	defer v.Close()

	server, err := api.New(cfg, v)
	if err != nil {
		return fmt.Errorf("failed to assemble server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveWatch {
		go func() {
			err := config.Watch(ctx, workspace, func(next *config.Config) {
				if logErr := logging.ReloadConfig(); logErr != nil {
					logger.Warn("logging reload failed", zap.Error(logErr))
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("serving", zap.String("addr", cfg.Server.Addr), zap.String("vault", dbPath))
	logging.Boot("Kimera SWM %s serving on %s", cfg.Version, cfg.Server.Addr)
	return server.ListenAndServe(ctx)
}
