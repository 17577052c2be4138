package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/app"
	"github.com/dgnsrekt/maxpain-dashboard/internal/collect"
	"github.com/dgnsrekt/maxpain-dashboard/internal/notify"
)

// Daemon runs one collection per slot while the session is open.
type Daemon struct {
	rt        *app.Runtime
	manager   *collect.Manager
	scheduler *Scheduler
	slots     *Tracker
	archives  *Tracker
	notifier  notify.Notifier
	logger    *zap.Logger
}

// shouldCollect returns the due slot, if any
func (d *Daemon) shouldCollect() (string, bool) {
	slot, open := d.scheduler.CurrentSlot()
	if !open {
		return "", false
	}
	if d.slots.Done(slot) {
		return "", false
	}
	return slot, true
}

// runCollect executes the collection for slot and updates the tracker
func (d *Daemon) runCollect(ctx context.Context, slot string) {
	d.logger.Info("starting scheduled collection", zap.String("slot", slot))
	start := time.Now()

	instruments, _ := d.rt.Instruments(nil)
	result, err := d.manager.Execute(ctx, collect.TasksFor(instruments))
	duration := time.Since(start)

	if err == nil && !result.Ok() && result.Success == 0 {
		err = fmt.Errorf("no snapshots saved: %s", result)
	}

	if err != nil {
		d.logger.Error("collection failed", zap.Error(err), zap.String("slot", slot))
		if nerr := d.notifier.SendFailure(ctx, result, slot, duration, err); nerr != nil {
			d.logger.Warn("failed to send failure notification", zap.Error(nerr))
		}
		return
	}

	d.logger.Info("collection succeeded",
		zap.String("slot", slot),
		zap.String("result", result.String()),
		zap.Duration("duration", duration),
	)

	if result.Failed > 0 {
		partial := fmt.Errorf("%d of %d snapshots failed", result.Failed, result.Total)
		if nerr := d.notifier.SendFailure(ctx, result, slot, duration, partial); nerr != nil {
			d.logger.Warn("failed to send failure notification", zap.Error(nerr))
		}
	} else if nerr := d.notifier.SendSuccess(ctx, result, slot, duration); nerr != nil {
		d.logger.Warn("failed to send success notification", zap.Error(nerr))
	}

	// Mark the slot done so a restart in the same slot does not duplicate rows
	if err := d.slots.Set(slot); err != nil {
		d.logger.Error("failed to update tracker", zap.Error(err))
	}
}

// archiveIfDue compresses each underlying's history once per business day
// after the close.
func (d *Daemon) archiveIfDue() {
	if !d.rt.Config.Collector.ArchiveDaily || !d.scheduler.AfterClose() {
		return
	}
	today := d.scheduler.TodayDate()
	if d.archives.Done(today) {
		return
	}

	for _, name := range d.rt.Config.UnderlyingNames() {
		path, err := d.rt.ArchiveHistory(name, today, true)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			d.logger.Warn("archive failed", zap.String("underlying", name), zap.Error(err))
			continue
		}
		d.logger.Info("history archived", zap.String("underlying", name), zap.String("path", path))
	}

	if err := d.archives.Set(today); err != nil {
		d.logger.Error("failed to update archive tracker", zap.Error(err))
	}
}
