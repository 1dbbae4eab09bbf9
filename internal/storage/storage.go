// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"reposter/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// SaveBatch stores scanned messages and advances the channel cursor to
	// the newest of them in one transaction. An empty batch is a no-op.
	SaveBatch(ctx context.Context, channel string, msgs []model.Message) error
	ListMessages(ctx context.Context, limit int) ([]model.Message, error)
	RecentMessages(ctx context.Context) ([]model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	DeleteMessage(ctx context.Context, id int64) error

	GetCursor(ctx context.Context, channel string) (*time.Time, error)
	SetCursor(ctx context.Context, channel string, at time.Time) error

	CreatePrompt(ctx context.Context, p *model.Prompt) error
	GetPrompt(ctx context.Context, id int64) (*model.Prompt, error)
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	UpdatePrompt(ctx context.Context, p *model.Prompt) error
	DeletePrompt(ctx context.Context, id int64) error

	SaveRewrite(ctx context.Context, r *model.Rewrite) error
	GetRewrite(ctx context.Context, id int64) (*model.Rewrite, error)
	ListRewrites(ctx context.Context) ([]model.Rewrite, error)
	UpdateRewrite(ctx context.Context, r *model.Rewrite) error
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	CreateWatch(ctx context.Context, w *model.Watch) error
	GetWatch(ctx context.Context, id int64) (*model.Watch, error)
	ListWatches(ctx context.Context) ([]model.Watch, error)
	ListDueWatches(ctx context.Context) ([]model.Watch, error)
	UpdateWatch(ctx context.Context, w *model.Watch) error
	DeleteWatch(ctx context.Context, id int64) error

	Close() error
}

// RecentLimit is the number of messages returned by RecentMessages.
const RecentLimit = 5
