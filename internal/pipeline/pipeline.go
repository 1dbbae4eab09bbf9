// Package pipeline ties scans, storage, AI rewrites and publishing together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reposter/internal/generator"
	"reposter/internal/model"
	"reposter/internal/platform"
	"reposter/internal/scanner"
	"reposter/internal/storage"
	"reposter/internal/telegram"
)

// DefaultScanTimeout bounds a single scan.
const DefaultScanTimeout = 2 * time.Minute

// Scanner reads a bounded batch of messages from a channel.
type Scanner interface {
	ScanBatch(ctx context.Context, channelID string, resume *time.Time, policy model.KeywordPolicy) (*scanner.Batch, error)
}

// Transformer turns a message into a rewrite.
type Transformer interface {
	Transform(ctx context.Context, text string, p model.Prompt) (*generator.Result, error)
	RegenerateText(ctx context.Context, text string, p model.Prompt) (string, error)
	RegenerateImage(ctx context.Context, title string, p model.Prompt) (string, error)
}

// Publisher posts a rewrite to a channel.
type Publisher interface {
	Send(ctx context.Context, channelID, text, imagePath string) error
}

// Notifier delivers operator notifications.
type Notifier interface {
	SendMessage(chatID int64, text string)
}

// Options configures a Pipeline.
type Options struct {
	ScanTimeout time.Duration
	// NotifyChatID receives a report after every scan that found messages
	// or ran into a history gap.
	NotifyChatID int64
}

// Pipeline runs the scan, transform and publish operations.
type Pipeline struct {
	store    storage.Storage
	scanner  Scanner
	gen      Transformer
	pub      Publisher
	notifier Notifier
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline. gen, pub and notifier may be nil when the
// corresponding operations are not used.
func New(store storage.Storage, sc Scanner, gen Transformer, pub Publisher, notifier Notifier, opts Options, log *slog.Logger) *Pipeline {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	return &Pipeline{
		store:    store,
		scanner:  sc,
		gen:      gen,
		pub:      pub,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// ScanRequest describes one scan.
type ScanRequest struct {
	Channel string
	Mode    model.ScanMode
	// Since is the resume point of ScanFromDate.
	Since  *time.Time
	Policy model.KeywordPolicy
}

// ScanResult is the outcome of a scan.
type ScanResult struct {
	Channel  string
	Resume   *time.Time
	Messages []model.Message
	// Earliest is set together with Gap to the oldest message the platform
	// still serves. Messages between Resume and Earliest were lost.
	Earliest *time.Time
	Gap      bool
}

// Scan resolves the resume point for the request mode, runs the scanner
// and stores the accepted messages, advancing the channel cursor.
func (p *Pipeline) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	channel := ChannelKey(req.Channel)
	if channel == "" {
		return nil, fmt.Errorf("empty channel: %w", scanner.ErrInvalidRequest)
	}

	resume, err := p.resumePoint(ctx, channel, req)
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, p.opts.ScanTimeout)
	defer cancel()

	batch, err := p.scanner.ScanBatch(scanCtx, channel, resume, req.Policy)
	if err != nil {
		return nil, err
	}
	msgs := batch.Messages

	if err := p.store.SaveBatch(ctx, channel, msgs); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	res := &ScanResult{Channel: channel, Resume: resume, Messages: msgs}
	if batch.Gap {
		res.Gap = true
		res.Earliest = batch.Earliest
		p.log.Warn("scan skipped unavailable history", "channel", channel, "resume", *resume, "earliest", *batch.Earliest)
	}

	p.log.Info("scan stored", "channel", channel, "mode", req.Mode, "messages", len(msgs))
	if (len(msgs) > 0 || res.Gap) && p.notifier != nil && p.opts.NotifyChatID != 0 {
		p.notifier.SendMessage(p.opts.NotifyChatID, Report(res))
	}

	return res, nil
}

// Report formats a scan result as an operator notification, leading with
// a warning when part of the history was no longer available.
func Report(res *ScanResult) string {
	report := telegram.FormatScanReport(res.Channel, res.Messages)
	if res.Gap {
		report = telegram.FormatHistoryGap(res.Channel, *res.Resume, *res.Earliest) + "\n" + report
	}
	return report
}

func (p *Pipeline) resumePoint(ctx context.Context, channel string, req ScanRequest) (*time.Time, error) {
	if req.Since != nil && req.Mode != model.ScanFromDate {
		return nil, fmt.Errorf("a date only applies to date mode, not %q: %w", req.Mode, scanner.ErrInvalidRequest)
	}
	switch req.Mode {
	case model.ScanFromStart:
		return nil, nil
	case model.ScanContinue, "":
		at, err := p.store.GetCursor(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("get cursor: %w", err)
		}
		return at, nil
	case model.ScanFromDate:
		if req.Since == nil {
			return nil, fmt.Errorf("date mode without a date: %w", scanner.ErrInvalidRequest)
		}
		since := req.Since.UTC()
		return &since, nil
	default:
		return nil, fmt.Errorf("unknown scan mode %q: %w", req.Mode, scanner.ErrInvalidRequest)
	}
}

// Transform rewrites a stored message with the given prompt and stores the
// result. promptID 0 selects the default prompts. When only the image could
// not be generated the rewrite is still stored and returned along with an
// error wrapping generator.ErrImageUnavailable.
func (p *Pipeline) Transform(ctx context.Context, messageID, promptID int64) (*model.Rewrite, error) {
	if p.gen == nil {
		return nil, errors.New("text generation is not configured")
	}
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	prompt, err := p.prompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	res, genErr := p.gen.Transform(ctx, msg.Text, prompt)
	if genErr != nil && !errors.Is(genErr, generator.ErrImageUnavailable) {
		return nil, genErr
	}

	rw := &model.Rewrite{
		MessageID: msg.ID,
		Title:     res.Title,
		Original:  msg.Text,
		Text:      res.Text,
		ImagePath: res.ImagePath,
	}
	if err := p.store.SaveRewrite(ctx, rw); err != nil {
		return nil, fmt.Errorf("save rewrite: %w", err)
	}
	p.log.Info("rewrite stored", "rewrite_id", rw.ID, "message_id", msg.ID, "title", rw.Title)
	return rw, genErr
}

// RegenerateText rewrites the original text of a stored rewrite again.
func (p *Pipeline) RegenerateText(ctx context.Context, rewriteID, promptID int64) (*model.Rewrite, error) {
	return p.regenerate(ctx, rewriteID, promptID, func(rw *model.Rewrite, prompt model.Prompt) error {
		text, err := p.gen.RegenerateText(ctx, rw.Original, prompt)
		if err != nil {
			return err
		}
		rw.Text = text
		return nil
	})
}

// RegenerateImage generates a new image for a stored rewrite.
func (p *Pipeline) RegenerateImage(ctx context.Context, rewriteID, promptID int64) (*model.Rewrite, error) {
	return p.regenerate(ctx, rewriteID, promptID, func(rw *model.Rewrite, prompt model.Prompt) error {
		path, err := p.gen.RegenerateImage(ctx, rw.Title, prompt)
		if err != nil {
			return fmt.Errorf("%w: %w", generator.ErrImageUnavailable, err)
		}
		rw.ImagePath = path
		return nil
	})
}

func (p *Pipeline) regenerate(ctx context.Context, rewriteID, promptID int64, apply func(*model.Rewrite, model.Prompt) error) (*model.Rewrite, error) {
	if p.gen == nil {
		return nil, errors.New("text generation is not configured")
	}
	rw, err := p.store.GetRewrite(ctx, rewriteID)
	if err != nil {
		return nil, err
	}
	prompt, err := p.prompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if err := apply(rw, prompt); err != nil {
		return nil, err
	}
	if err := p.store.UpdateRewrite(ctx, rw); err != nil {
		return nil, err
	}
	return rw, nil
}

// EditRewrite replaces the text of a stored rewrite with a hand-written one.
func (p *Pipeline) EditRewrite(ctx context.Context, rewriteID int64, text string) (*model.Rewrite, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("rewrite text is empty")
	}
	rw, err := p.store.GetRewrite(ctx, rewriteID)
	if err != nil {
		return nil, err
	}
	rw.Text = text
	if err := p.store.UpdateRewrite(ctx, rw); err != nil {
		return nil, err
	}
	p.log.Info("rewrite edited", "rewrite_id", rw.ID)
	return rw, nil
}

// Publish posts a stored rewrite to channel and marks it published.
func (p *Pipeline) Publish(ctx context.Context, rewriteID int64, channel string) error {
	if p.pub == nil {
		return errors.New("publishing is not configured")
	}
	rw, err := p.store.GetRewrite(ctx, rewriteID)
	if err != nil {
		return err
	}
	if err := p.pub.Send(ctx, channel, rw.Text, rw.ImagePath); err != nil {
		return fmt.Errorf("publish rewrite %d: %w", rw.ID, err)
	}
	if err := p.store.MarkPublished(ctx, rw.ID, p.now().UTC()); err != nil {
		return err
	}
	p.log.Info("rewrite published", "rewrite_id", rw.ID, "channel", channel)
	return nil
}

func (p *Pipeline) prompt(ctx context.Context, id int64) (model.Prompt, error) {
	if id == 0 {
		return model.Prompt{}, nil
	}
	pr, err := p.store.GetPrompt(ctx, id)
	if err != nil {
		return model.Prompt{}, err
	}
	return *pr, nil
}

// ChannelKey normalizes a channel reference so that "@name", "name" and
// "https://t.me/name" share one cursor.
func ChannelKey(channel string) string {
	if name, ok := platform.Username(channel); ok {
		return strings.ToLower(name)
	}
	return strings.TrimSpace(channel)
}
