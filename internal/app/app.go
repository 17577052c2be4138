// Package app wires the broker client, response cache and history store
// shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/cache"
	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/logging"
	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
	"github.com/dgnsrekt/maxpain-dashboard/internal/quote"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

// Runtime holds the long-lived dependencies of a binary.
type Runtime struct {
	Config  *config.Config
	Client  dhan.Client
	Store   snapshot.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	closers []func() error
}

// Open connects the cache backend and opens the history store. The broker
// client is wrapped with the response cache.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	m := metrics.New()

	c, closeCache, err := cache.New(ctx, cfg.Cache.Options())
	if err != nil {
		return nil, err
	}

	store, err := snapshot.Open(cfg.Storage.Store())
	if err != nil {
		_ = closeCache()
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	logger.Info("runtime ready",
		zap.String("dhanClient", cfg.Dhan.ClientID),
		zap.String("dhanToken", logging.Mask(cfg.Dhan.AccessToken)),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("storage", cfg.Storage.Backend),
		zap.Strings("underlyings", cfg.UnderlyingNames()),
	)

	rt := &Runtime{
		Config:  cfg,
		Client:  dhan.NewCachedClient(dhan.NewClient(cfg.Dhan.Client(), m, logger), c, cfg.Cache.TTLs(), m, logger),
		Store:   store,
		Metrics: m,
		Logger:  logger,
	}
	rt.closers = append(rt.closers, store.Close, closeCache)
	return rt, nil
}

// CachedStore wraps the store with a short-lived read cache for repeated
// dashboard loads.
func (r *Runtime) CachedStore() snapshot.Store {
	if r.Config.Storage.HistoryTTL <= 0 {
		return r.Store
	}
	return snapshot.NewCachedStore(r.Store, r.Config.Storage.HistoryTTL)
}

// SpotSource builds the spot price chain from dashboard.spot_sources.
func (r *Runtime) SpotSource() quote.Source {
	var sources []quote.Source
	for _, name := range r.Config.Dashboard.SpotSources {
		switch strings.ToLower(name) {
		case "dhan":
			sources = append(sources, quote.NewDhanSource(r.Client))
		case "yahoo":
			sources = append(sources, quote.NewYahooSource(r.Config.Dashboard.YahooURL, r.Config.Dhan.Timeout))
		}
	}
	return quote.NewFallback(r.Logger, sources...)
}

// Instruments resolves names against the configured underlyings. An empty
// list selects all of them.
func (r *Runtime) Instruments(names []string) ([]dhan.Instrument, error) {
	if len(names) == 0 {
		out := make([]dhan.Instrument, len(r.Config.Underlyings))
		for i, u := range r.Config.Underlyings {
			out[i] = u.Instrument()
		}
		return out, nil
	}

	out := make([]dhan.Instrument, 0, len(names))
	for _, name := range names {
		u, ok := r.Config.Underlying(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown underlying %q (configured: %s)", name, strings.Join(r.Config.UnderlyingNames(), ", "))
		}
		out = append(out, u.Instrument())
	}
	return out, nil
}

// ArchiveHistory compresses symbol's CSV history into the archive directory
// as <symbol>-<date>.csv.zst.
func (r *Runtime) ArchiveHistory(symbol, date string, truncate bool) (string, error) {
	csvStore, ok := r.Store.(*snapshot.CSVStore)
	if !ok {
		return "", fmt.Errorf("archiving requires the csv storage backend, have %q", r.Config.Storage.Backend)
	}
	return snapshot.Archive(csvStore.Path(symbol), r.Config.Storage.ArchiveDirectory, date, truncate)
}

// Close releases the store and cache connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
