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
	"github.com/dgnsrekt/maxpain-dashboard/internal/collect"
	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/logging"
	"github.com/dgnsrekt/maxpain-dashboard/internal/notify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv("MAXPAIN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New("daemon", false, &cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	session, err := cfg.Market.Session()
	if err != nil {
		logger.Error("invalid market session", zap.Error(err))
		return 1
	}

	logger.Info("daemon configuration loaded",
		zap.Duration("interval", cfg.Collector.Interval),
		zap.String("session", cfg.Market.Open+"-"+cfg.Market.Close+" "+cfg.Market.Timezone),
		zap.String("stateFile", cfg.Collector.StateFile),
		zap.Bool("runOnStartup", cfg.Collector.RunOnStartup),
		zap.Bool("archiveDaily", cfg.Collector.ArchiveDaily),
		zap.Strings("underlyings", cfg.UnderlyingNames()),
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open runtime", zap.Error(err))
		return 1
	}
	defer rt.Close()

	if cfg.Collector.ArchiveDaily && cfg.Storage.Backend != "csv" {
		logger.Warn("daily archiving needs the csv backend, disabling", zap.String("backend", cfg.Storage.Backend))
		cfg.Collector.ArchiveDaily = false
	}

	notifyCfg := notify.FromConfig(cfg.Notify)
	if err := notifyCfg.Validate(); err != nil {
		logger.Error("invalid notification config", zap.Error(err))
		return 1
	}

	d := &Daemon{
		rt: rt,
		manager: collect.NewManager(rt.Client, rt.Store, collect.Options{
			Workers:  cfg.Collector.Workers,
			Scale:    cfg.Collector.Scale,
			Location: session.Location,
		}, rt.Metrics, logger),
		scheduler: NewScheduler(session, cfg.Collector.Interval),
		slots:     NewTracker(cfg.Collector.StateFile),
		archives:  NewTracker(cfg.Collector.StateFile + ".archive"),
		notifier:  notify.New(notifyCfg, logger),
		logger:    logger,
	}

	if cfg.Collector.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Collector.MetricsAddr,
			Handler:           rt.Metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("daemon started", zap.String("timezone", d.scheduler.Location().String()))

	// Check on startup if enabled
	if cfg.Collector.RunOnStartup {
		logger.Info("checking for a due slot on startup")
		d.tick(ctx)
	}

	// Main loop - check every minute
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.tick(ctx)

		case <-ctx.Done():
			logger.Info("received shutdown signal, stopping")
			return 0
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	if slot, ok := d.shouldCollect(); ok {
		d.runCollect(ctx, slot)
	}
	d.archiveIfDue()
}
