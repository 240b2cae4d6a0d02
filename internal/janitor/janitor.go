// Package janitor runs a scheduled sweep that keeps every thread's pin
// set pointing at messages that still resolve, dropping dangling ids.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"recalld/pkg/config"
	"recalld/pkg/logger"
	"recalld/pkg/models"
	"recalld/pkg/store"
)

// DefaultCron runs the sweep daily at 03:00.
const DefaultCron = "0 3 * * *"

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	if !cfg.Janitor.Enabled {
		logger.Info("janitor_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Janitor.Cron
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("janitor_invalid_cron", "cron", cfg.Janitor.Cron)
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cfg.Janitor.Cron)
	}

	logger.Info("janitor_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("janitor_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(); err != nil {
				logger.Error("janitor_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		}
	}
}

// RunOnce sweeps every thread once. Exposed for admin triggers and tests.
func RunOnce() error {
	threads, err := store.ListThreads()
	if err != nil {
		return err
	}
	var swept, dropped int
	for _, th := range threads {
		n, err := sweepThread(th.ID)
		if err != nil {
			logger.Warn("janitor_thread_failed", "thread", th.ID, "error", err)
			continue
		}
		swept++
		dropped += n
	}
	logger.Info("janitor_run_done", "threads", swept, "pins_dropped", dropped)
	return nil
}

// sweepThread drops pin ids whose message no longer resolves and reports
// how many were removed.
func sweepThread(threadID string) (int, error) {
	set, err := store.GetPins(threadID)
	if err != nil {
		return 0, err
	}
	if len(set.Items) == 0 {
		return 0, nil
	}
	kept := make([]string, 0, len(set.Items))
	for _, id := range set.Items {
		if m, err := store.GetMessage(id); err == nil && m.Thread == threadID {
			kept = append(kept, id)
			continue
		}
		logger.Debug("janitor_pin_dropped", "thread", threadID, "msg_id", id)
	}
	if len(kept) == len(set.Items) {
		return 0, nil
	}
	dropped := len(set.Items) - len(kept)
	if err := store.SetPins(threadID, models.PinSet{Items: kept}); err != nil {
		return 0, err
	}
	return dropped, nil
}
