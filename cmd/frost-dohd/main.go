// Command frost-dohd is the daemon entrypoint: it loads settings, opens
// the store, builds the resolver engine, and exports it on the session
// bus until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glaciaos/frost-doh/internal/busservice"
	"github.com/glaciaos/frost-doh/internal/config"
	"github.com/glaciaos/frost-doh/internal/diagnostics"
	"github.com/glaciaos/frost-doh/internal/dohclient"
	"github.com/glaciaos/frost-doh/internal/logging"
	"github.com/glaciaos/frost-doh/internal/provider"
	"github.com/glaciaos/frost-doh/internal/resolver"
	"github.com/glaciaos/frost-doh/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.Configure(logging.Config{Level: cfg.LoggingLevel, JSON: cfg.LoggingJSON})
	logger.Info("frost-dohd starting",
		"provider", cfg.Provider,
		"sqlite", cfg.SQLitePath,
		"diagnostics", cfg.DiagnosticsOn,
	)

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	client := dohclient.New()
	adapter := provider.Select(provider.Name(cfg.Provider), client)

	ttlMode := resolver.TTLUpstream
	if !cfg.TTL.UseUpstream {
		ttlMode = resolver.TTLFixed
	}
	engine := resolver.New(st, adapter, ttlMode, cfg.TTL.FixedSecs, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.DiagnosticsOn {
		srv := &http.Server{Addr: cfg.DiagnosticsAddr, Handler: diagnostics.NewRouter(st)}
		go func() {
			logger.Info("diagnostics surface listening", "addr", cfg.DiagnosticsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("diagnostics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	svc := busservice.New(engine, logger)
	if err := busservice.Serve(ctx, svc); err != nil {
		engine.Shutdown(context.Background())
		return fmt.Errorf("bus service exited: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	engine.Shutdown(shutdownCtx)

	logger.Info("frost-dohd stopped")
	return nil
}
