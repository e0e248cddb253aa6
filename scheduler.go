package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Scheduler drives the merged schedule list: it repeatedly computes the
// globally next fire time across all entries, sleeps until then, and
// dispatches the winning entry's folder set to the scan worker.
type Scheduler struct {
	entries  []scheduleEntry
	worker   *ScanWorker
	logger   *slog.Logger
	runOnce  bool
	timezone string
}

// newScheduler creates a new scheduler over prebuilt schedule entries
func newScheduler(cfg *Config, entries []scheduleEntry, worker *ScanWorker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		entries:  entries,
		worker:   worker,
		logger:   logger,
		runOnce:  cfg.RunOnce,
		timezone: strings.TrimSpace(cfg.Timezone),
	}
}

// Run blocks until the context is cancelled, or until the first fire
// completes in run-once mode. Next-fire times are recomputed every
// iteration rather than cached; cron evaluation is DST-sensitive and
// cheap to redo.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return errors.New("no schedules configured")
	}

	tz := s.timezone
	if tz == "" {
		tz = "(system default)"
	}
	// The timezone is advisory only; cron math runs on local wall-clock time.
	s.logger.Info("Scheduler started", "schedules", len(s.entries), "timezone", tz)

	for {
		now := time.Now()
		entry, fireAt := s.nextEvent(now)

		delay := time.Until(fireAt)
		if delay < 0 {
			delay = 0
		}
		s.logger.Info("Next scan scheduled",
			"at", fireAt.Format("2006-01-02 15:04:05"),
			"in", delay.Round(time.Second).String(),
			"folders", strings.Join(entry.Folders, ","),
			"cron", entry.Expr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.worker.TriggerScans(ctx, entry.Folders)

		if s.runOnce {
			s.logger.Info("Run-once mode; exiting after scheduled scan")
			return nil
		}
	}
}

// nextEvent picks the entry with the smallest next-fire time after now.
// A tie keeps the earlier-declared entry: the global schedule comes
// before per-folder schedules, which follow their declaration order.
func (s *Scheduler) nextEvent(now time.Time) (scheduleEntry, time.Time) {
	winner := s.entries[0]
	fireAt := winner.next(now)
	for _, entry := range s.entries[1:] {
		if next := entry.next(now); next.Before(fireAt) {
			winner = entry
			fireAt = next
		}
	}
	return winner, fireAt
}
