// Package scheduler runs the scans of active watches on their intervals.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reposter/internal/model"
	"reposter/internal/pipeline"
	"reposter/internal/scanner"
	"reposter/internal/storage"
)

// Scanner runs a single stored scan.
type Scanner interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (*pipeline.ScanResult, error)
}

// Scheduler periodically scans the channels of due watches.
type Scheduler struct {
	store   storage.Storage
	scanner Scanner
	log     *slog.Logger
	tick    time.Duration
	now     func() time.Time
}

// New creates a Scheduler that checks for due watches every minute.
func New(store storage.Storage, sc Scanner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		scanner: sc,
		log:     log,
		tick:    1 * time.Minute,
		now:     time.Now,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	watches, err := s.store.ListDueWatches(ctx)
	if err != nil {
		s.log.Error("list due watches", "error", err)
		return
	}

	for _, w := range watches {
		if ctx.Err() != nil {
			return
		}
		s.processWatch(ctx, w)
	}
}

func (s *Scheduler) processWatch(ctx context.Context, w model.Watch) {
	s.log.Debug("checking watch", "watch_id", w.ID, "channel", w.Channel)

	res, err := s.scanner.Scan(ctx, pipeline.ScanRequest{
		Channel: w.Channel,
		Mode:    model.ScanContinue,
		Policy:  w.Policy(),
	})
	switch {
	case errors.Is(err, scanner.ErrChannelNotFound):
		s.log.Warn("channel not found, deactivating watch", "watch_id", w.ID, "channel", w.Channel)
		w.IsActive = false
	case err != nil:
		s.log.Error("scan watch", "watch_id", w.ID, "channel", w.Channel, "retryable", scanner.IsRetryable(err), "error", err)
	case len(res.Messages) > 0:
		s.log.Info("watch found messages", "watch_id", w.ID, "channel", w.Channel, "count", len(res.Messages))
	}

	s.updateLastCheck(ctx, &w)
}

func (s *Scheduler) updateLastCheck(ctx context.Context, w *model.Watch) {
	now := s.now().UTC()
	w.LastCheckAt = &now
	if err := s.store.UpdateWatch(ctx, w); err != nil {
		s.log.Error("update last check", "watch_id", w.ID, "error", err)
	}
}
