// Command server runs the bot supervisor and the admin API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "warden",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	rt, err := bootstrap.Wire(cfg, db, rdb, nil)
	if err != nil {
		log.Fatalf("Failed to wire services: %v", err)
	}

	started, err := rt.Supervisor.LoadAll(ctx)
	if err != nil {
		observability.Logger.Error("bulk session start failed", slog.String("error", err.Error()))
	} else {
		observability.Logger.Info("tenant sessions started", slog.Int("count", started))
	}

	if ok, err := rt.Supervisor.StartCentral(ctx); err != nil {
		observability.Logger.Warn("central session not started", slog.String("error", err.Error()))
	} else if !ok {
		observability.Logger.Warn("central session handshake rejected")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.Server.Start(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			observability.Logger.Error("admin API stopped", slog.String("error", err.Error()))
		}
	}

	observability.Logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rt.Server.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	rt.Supervisor.Shutdown(shutdownCtx)
	if err := rt.Close(); err != nil {
		observability.Logger.Error("resource shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		observability.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	observability.Logger.Info("Shutdown complete")
}
