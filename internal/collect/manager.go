// Package collect takes periodic max-pain snapshots of each configured
// underlying and appends them to the history store.
package collect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/maxpain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

type Options struct {
	Workers  int
	Scale    float64
	Location *time.Location
	DryRun   bool
}

type Manager struct {
	client  dhan.Client
	store   snapshot.Store
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewManager(client dhan.Client, store snapshot.Store, opts Options, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Manager{
		client:  client,
		store:   store,
		opts:    opts,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (m *Manager) Execute(ctx context.Context, tasks []Task) (*BatchResult, error) {
	result := &BatchResult{Total: len(tasks)}

	if len(tasks) == 0 {
		return result, nil
	}

	// One timestamp per batch keeps underlyings aligned by minute.
	ts := m.now().In(m.opts.Location)

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, ts, jobs, results)
		}()
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	for r := range results {
		switch {
		case r.NoExpiry:
			result.NoExpiry++
		case r.NoChain:
			result.NoChain++
		case r.Success:
			result.Success++
		default:
			result.Failed++
			if r.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Task, r.Error))
			}
		}
		result.Results = append(result.Results, r)
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Task.String() < result.Results[j].Task.String()
	})

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) worker(ctx context.Context, ts time.Time, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := m.processTask(ctx, task, ts)

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (m *Manager) processTask(ctx context.Context, task Task, ts time.Time) TaskResult {
	result := TaskResult{Task: task}
	name := task.Instrument.Name
	log := m.logger.With(zap.String("underlying", name))

	expiries, err := m.client.ExpiryList(ctx, task.Instrument)
	if err != nil {
		if errors.Is(err, dhan.ErrNoExpiry) || errors.Is(err, dhan.ErrNotFound) {
			log.Warn("no expiry listed")
			result.NoExpiry = true
			m.metrics.RecordSnapshot(name, "no_expiry", 0, 0)
			return result
		}
		result.Error = fmt.Errorf("listing expiries: %w", err)
		m.metrics.RecordSnapshot(name, "failed", 0, 0)
		return result
	}
	result.Expiry = expiries[0]

	c, err := m.client.OptionChain(ctx, task.Instrument, result.Expiry)
	if err != nil {
		if errors.Is(err, dhan.ErrNotFound) {
			log.Warn("no option chain", zap.String("expiry", result.Expiry))
			result.NoChain = true
			m.metrics.RecordSnapshot(name, "no_chain", 0, 0)
			return result
		}
		result.Error = fmt.Errorf("fetching chain: %w", err)
		m.metrics.RecordSnapshot(name, "failed", 0, 0)
		return result
	}
	if c.Len() == 0 {
		log.Warn("empty option chain", zap.String("expiry", result.Expiry))
		result.NoChain = true
		m.metrics.RecordSnapshot(name, "no_chain", 0, 0)
		return result
	}

	mp, err := maxpain.Compute(c.MaxPainInput())
	if err != nil {
		result.Error = fmt.Errorf("computing max pain: %w", err)
		m.metrics.RecordSnapshot(name, "failed", 0, 0)
		return result
	}

	rows := snapshot.FromChain(c, Truncate(mp.Scaled(m.opts.Scale)), ts)
	result.Rows = len(rows)
	result.MaxPainStrike = mp.MaxPainStrike()

	if m.opts.DryRun {
		log.Info("dry run, snapshot not saved",
			zap.Int("rows", len(rows)),
			zap.Float64("max_pain", result.MaxPainStrike))
		result.Success = true
		return result
	}

	if err := m.store.Append(ctx, name, rows); err != nil {
		result.Error = fmt.Errorf("saving snapshot: %w", err)
		m.metrics.RecordSnapshot(name, "failed", 0, 0)
		return result
	}

	result.Success = true
	m.metrics.RecordSnapshot(name, "ok", len(rows), result.MaxPainStrike)
	m.metrics.SetSpot(name, c.Spot)
	log.Info("snapshot saved",
		zap.String("expiry", result.Expiry),
		zap.Int("rows", len(rows)),
		zap.Float64("max_pain", result.MaxPainStrike),
		zap.String("timestamp", ts.Format(snapshot.TimestampLayout)))

	return result
}

// Truncate drops the fractional part of each value in place.
func Truncate(values []float64) []float64 {
	for i, v := range values {
		values[i] = math.Trunc(v)
	}
	return values
}
