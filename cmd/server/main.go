package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/app"
	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
	"github.com/dgnsrekt/maxpain-dashboard/internal/logging"
	"github.com/dgnsrekt/maxpain-dashboard/internal/server"
	"github.com/dgnsrekt/maxpain-dashboard/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load config
	cfg, err := config.Load(os.Getenv("MAXPAIN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New("server", false, &cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("addr", cfg.Dashboard.Addr()),
		zap.Strings("underlyings", cfg.UnderlyingNames()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.Duration("refreshInterval", cfg.Dashboard.RefreshInterval),
		zap.Duration("compareRefresh", cfg.Dashboard.CompareRefresh),
		zap.Bool("wsEnabled", cfg.Dashboard.WSEnabled),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open runtime", zap.Error(err))
		return 1
	}
	defer rt.Close()

	svc := dashboard.NewService(rt.Client, rt.SpotSource(), rt.CachedStore(), cfg, rt.Metrics, logger)
	events := server.NewEvents(logger)
	names := cfg.UnderlyingNames()

	// The hub always runs so the streamer has a group registry; it is only
	// mounted when WebSocket push is enabled.
	hub := ws.NewHub("board", names, rt.Metrics, logger)
	go hub.Run(ctx)

	streamer, err := ws.NewStreamer(hub, svc, cfg.Dashboard.RefreshInterval, logger, events)
	if err != nil {
		logger.Error("failed to create board streamer", zap.Error(err))
		return 1
	}
	go streamer.Run(ctx)

	var push *server.Push
	if cfg.Dashboard.WSEnabled {
		push = &server.Push{
			Hub:       hub,
			Negotiate: ws.NewNegotiateHandler("/ws", names, logger),
		}
		logger.Info("WebSocket enabled", zap.Strings("groups", names))
	}

	srv := server.NewServer(svc, events, server.Options{
		BoardRefresh:   cfg.Dashboard.RefreshInterval,
		CompareRefresh: cfg.Dashboard.CompareRefresh,
	}, logger)

	// Create router
	router, err := server.NewRouter(srv, push, rt.Metrics, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	// Streaming responses stay open, so only the header read is bounded.
	httpServer := &http.Server{
		Addr:              cfg.Dashboard.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Cancel context to stop push components
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}
