// Package platform defines the messaging platform session contracts
// shared by the scanner and the publisher.
package platform

import (
	"context"
	"errors"
	"iter"
	"time"

	"reposter/internal/model"
)

// ErrChannelNotFound is returned when a channel identifier does not resolve.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is a resolved channel. Handle is owned by the connection that
// resolved it and must not be used with another connection.
type Channel struct {
	ID     string
	Title  string
	Handle any
}

// Connector opens sessions to the messaging platform.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a single open platform session.
type Conn interface {
	// ResolveChannel maps a channel identifier to a handle.
	// It returns an error wrapping ErrChannelNotFound for unknown channels.
	ResolveChannel(ctx context.Context, channelID string) (Channel, error)

	// History yields the channel's messages oldest-first, strictly after
	// the given time (nil means from the earliest message). The sequence
	// is single-pass; call History again to restart from a point.
	History(ctx context.Context, ch Channel, after *time.Time) iter.Seq2[model.Message, error]

	Close() error
}

// Windowed is implemented by connections whose history may not reach back
// to the first message of a channel, such as feeds that keep only the
// latest posts.
type Windowed interface {
	// Earliest returns the date of the oldest message still served for the
	// channel, or nil when the channel has no dated messages.
	Earliest(ctx context.Context, ch Channel) (*time.Time, error)
}
