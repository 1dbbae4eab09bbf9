package platform

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"reposter/internal/model"
)

// Gate grants exclusive ownership of the platform session.
// At most one scan or upload holds it at a time.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates an unowned gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the gate is free or ctx is done.
// The returned release func is safe to call more than once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	var once sync.Once
	return func() { once.Do(func() { g.sem.Release(1) }) }, nil
}

// Exclusive wraps a Connector so that every connection it opens holds
// the gate until the connection is closed.
func Exclusive(c Connector, g *Gate) Connector {
	return &exclusiveConnector{inner: c, gate: g}
}

type exclusiveConnector struct {
	inner Connector
	gate  *Gate
}

func (e *exclusiveConnector) Connect(ctx context.Context) (Conn, error) {
	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := e.inner.Connect(ctx)
	if err != nil {
		release()
		return nil, err
	}
	return &exclusiveConn{inner: conn, release: release}, nil
}

type exclusiveConn struct {
	inner   Conn
	release func()
}

func (c *exclusiveConn) ResolveChannel(ctx context.Context, channelID string) (Channel, error) {
	return c.inner.ResolveChannel(ctx, channelID)
}

func (c *exclusiveConn) History(ctx context.Context, ch Channel, after *time.Time) iter.Seq2[model.Message, error] {
	return c.inner.History(ctx, ch, after)
}

// Earliest forwards to the wrapped connection, reporting nil when it does
// not implement Windowed.
func (c *exclusiveConn) Earliest(ctx context.Context, ch Channel) (*time.Time, error) {
	w, ok := c.inner.(Windowed)
	if !ok {
		return nil, nil
	}
	return w.Earliest(ctx, ch)
}

func (c *exclusiveConn) Close() error {
	defer c.release()
	return c.inner.Close()
}
