// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aegis-hr/aegis/internal/config"
	"github.com/aegis-hr/aegis/internal/server"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Aegis server",
		Long: `Load configuration and start the HTTP server. The agent and the ingestion
pipeline are initialized in the background; until they are ready /chat and
/upload answer 503.`,
		RunE: runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, slog.Default())
}

// serve runs the server until ctx ends. Wiring failures are logged and leave
// the server answering 503.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		TrustedProxies: cfg.Server.TrustedProxies,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RPS,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Version: version,
		Logger:  logger.With("component", "server"),
	})
	if err != nil {
		return aegiserr.Reclassify(err, aegiserr.CodeCLISetupFailure, "creating server")
	}

	wired := make(chan *App, 1)
	go func() {
		app, err := WireApp(cfg, logger)
		if err != nil {
			logger.Error("initialization failed; chat and upload stay unavailable",
				"code", aegiserr.CodeOf(err), "error", err)
			wired <- nil
			return
		}
		srv.SetServices(app.Services())
		app.runWatcher(ctx, logger)
		logger.Info("aegis ready", "tools", app.Orchestrator.Tools().Names())
		wired <- app
	}()

	serveErr := srv.Start(ctx)
	if app := <-wired; app != nil {
		if err := app.Close(); err != nil {
			logger.Warn("closing app", "error", err)
		}
	}
	return serveErr
}
