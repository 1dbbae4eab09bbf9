// Package scanner walks a channel's history and collects messages that
// pass a keyword policy.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"reposter/internal/filter"
	"reposter/internal/model"
	"reposter/internal/platform"
)

// Defaults for Options.
const (
	DefaultBatchLimit = 5
	DefaultPacing     = 1 * time.Second
)

// Options tunes a Scanner.
type Options struct {
	// BatchLimit caps the number of accepted messages per scan.
	BatchLimit int
	// Pacing is the minimum delay between two examined messages.
	// Zero disables pacing.
	Pacing time.Duration
}

// Scanner performs bounded, resumable channel scans.
type Scanner struct {
	connector platform.Connector
	opts      Options
	log       *slog.Logger
}

// New creates a Scanner. A non-positive BatchLimit falls back to DefaultBatchLimit.
func New(connector platform.Connector, opts Options, log *slog.Logger) *Scanner {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}
	return &Scanner{connector: connector, opts: opts, log: log}
}

// BatchLimit returns the effective batch limit.
func (s *Scanner) BatchLimit() int {
	return s.opts.BatchLimit
}

// Batch is the outcome of ScanBatch.
type Batch struct {
	Messages []model.Message
	// Earliest is the oldest message date the platform still serves, when
	// the connection reports one.
	Earliest *time.Time
	// Gap is set when Earliest is after the resume point. Messages posted
	// between the two are no longer available and were not examined.
	Gap bool
}

// Scan returns up to BatchLimit messages of the channel that were posted
// strictly after resume (nil scans from the earliest message) and pass
// the policy, oldest first. The connection is closed on every return path.
func (s *Scanner) Scan(ctx context.Context, channelID string, resume *time.Time, policy model.KeywordPolicy) ([]model.Message, error) {
	b, err := s.ScanBatch(ctx, channelID, resume, policy)
	if err != nil {
		return nil, err
	}
	return b.Messages, nil
}

// ScanBatch is Scan that also reports whether the history still reaches
// back to resume.
func (s *Scanner) ScanBatch(ctx context.Context, channelID string, resume *time.Time, policy model.KeywordPolicy) (*Batch, error) {
	if channelID == "" {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidRequest)
	}

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, &ScanFailedError{Channel: channelID, Err: fmt.Errorf("connect: %w", err)}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Warn("disconnect", "channel", channelID, "error", err)
		}
	}()

	ch, err := conn.ResolveChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil, fmt.Errorf("resolve %q: %w", channelID, err)
		}
		return nil, &ScanFailedError{Channel: channelID, Err: fmt.Errorf("resolve: %w", err)}
	}

	batch := &Batch{}
	if w, ok := conn.(platform.Windowed); ok && resume != nil {
		earliest, err := w.Earliest(ctx, ch)
		if err != nil {
			return nil, &ScanFailedError{Channel: channelID, Err: fmt.Errorf("earliest message: %w", err)}
		}
		batch.Earliest = earliest
		if earliest != nil && earliest.After(*resume) {
			batch.Gap = true
			s.log.Warn("history gap, older messages are no longer available",
				"channel", channelID, "resume", *resume, "earliest", *earliest)
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.opts.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.Pacing), 1)
	}

	var (
		found    []model.Message
		examined int
	)
	for msg, err := range conn.History(ctx, ch, resume) {
		if err != nil {
			return nil, &ScanFailedError{Channel: channelID, Err: fmt.Errorf("read history: %w", err)}
		}
		if err := pace(ctx, limiter); err != nil {
			return nil, &ScanFailedError{Channel: channelID, Err: fmt.Errorf("pacing: %w", err)}
		}
		examined++

		if resume != nil && !msg.Date.After(*resume) {
			continue
		}
		if msg.Text == "" {
			continue
		}
		if !filter.IsValid(msg.Text, policy) {
			continue
		}

		msg.Channel = channelID
		found = append(found, msg)
		s.log.Debug("message matched", "channel", channelID, "date", msg.Date, "preview", preview(msg.Text, 80))

		if len(found) >= s.opts.BatchLimit {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ScanFailedError{Channel: channelID, Err: err}
	}

	s.log.Info("scan finished", "channel", channelID, "examined", examined, "matched", len(found))
	batch.Messages = found
	return batch, nil
}

// pace waits for the next limiter slot. It sleeps until ctx is done even
// when the slot lies past the deadline, so the error is always ctx.Err().
func pace(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	d := r.Delay()
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
