package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reposter/internal/model"
	"reposter/internal/platform"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeConn struct {
	history  []model.Message
	notFound bool
	errAfter int // fail after yielding this many messages; -1 disables
	closeErr error

	closed   bool
	yielded  int
	resolved string
}

func (f *fakeConn) ResolveChannel(_ context.Context, id string) (platform.Channel, error) {
	f.resolved = id
	if f.notFound {
		return platform.Channel{}, fmt.Errorf("lookup %s: %w", id, platform.ErrChannelNotFound)
	}
	return platform.Channel{ID: id, Title: "Test channel"}, nil
}

func (f *fakeConn) History(_ context.Context, _ platform.Channel, after *time.Time) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		for _, m := range f.history {
			if after != nil && !m.Date.After(*after) {
				continue
			}
			if f.errAfter >= 0 && f.yielded == f.errAfter {
				yield(model.Message{}, errors.New("flood wait"))
				return
			}
			f.yielded++
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (f *fakeConn) Close() error {
	f.closed = true
	return f.closeErr
}

type fakeConnector struct {
	conn *fakeConn
	err  error
}

func (f *fakeConnector) Connect(_ context.Context) (platform.Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func newFakeConn(history []model.Message) *fakeConn {
	return &fakeConn{history: history, errAfter: -1}
}

func makeHistory(texts ...string) []model.Message {
	msgs := make([]model.Message, len(texts))
	for i, text := range texts {
		msgs[i] = model.Message{Text: text, Date: base.Add(time.Duration(i) * time.Minute)}
	}
	return msgs
}

func newTestScanner(conn *fakeConn, opts Options) *Scanner {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&fakeConnector{conn: conn}, opts, log)
}

func texts(msgs []model.Message) []string {
	var out []string
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestScanFiltersAndOrders(t *testing.T) {
	conn := newFakeConn(makeHistory("Rust is great", "I like Go", "", "rusty nails", "rust spam"))
	s := newTestScanner(conn, Options{})

	got, err := s.Scan(context.Background(), "devchannel", nil, model.KeywordPolicy{
		Include: []string{"rust"},
		Exclude: []string{"spam"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	want := []string{"Rust is great", "rusty nails"}
	if diff := cmp.Diff(want, texts(got)); diff != "" {
		t.Errorf("Scan() texts mismatch (-want +got):\n%s", diff)
	}
	for _, m := range got {
		if m.Channel != "devchannel" {
			t.Errorf("message channel = %q, want devchannel", m.Channel)
		}
	}
	if !conn.closed {
		t.Error("connection was not closed")
	}
}

func TestScanBatchLimit(t *testing.T) {
	var history []string
	for i := range 12 {
		history = append(history, fmt.Sprintf("post %d", i+1))
	}
	conn := newFakeConn(makeHistory(history...))
	s := newTestScanner(conn, Options{BatchLimit: 5})

	first, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if diff := cmp.Diff([]string{"post 1", "post 2", "post 3", "post 4", "post 5"}, texts(first)); diff != "" {
		t.Errorf("first batch mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(5, conn.yielded); diff != "" {
		t.Errorf("scan should stop iterating at the limit (-want +got):\n%s", diff)
	}

	cursor := first[len(first)-1].Date
	conn.yielded = 0
	second, err := s.Scan(context.Background(), "chan", &cursor, model.KeywordPolicy{})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if diff := cmp.Diff([]string{"post 6", "post 7", "post 8", "post 9", "post 10"}, texts(second)); diff != "" {
		t.Errorf("second batch mismatch (-want +got):\n%s", diff)
	}
}

func TestScanNeverExceedsLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 20} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			conn := newFakeConn(makeHistory("a", "b", "c", "d", "e", "f", "g"))
			s := newTestScanner(conn, Options{BatchLimit: limit})
			got, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{})
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(got) > limit {
				t.Errorf("got %d messages, limit %d", len(got), limit)
			}
		})
	}
}

func TestScanResumeIsExclusive(t *testing.T) {
	conn := newFakeConn(makeHistory("one", "two", "three"))
	// the connection ignores the start point, the scanner must still drop old messages
	conn.history = append([]model.Message{{Text: "stale", Date: base.Add(-time.Hour)}}, conn.history...)
	s := newTestScanner(conn, Options{})

	resume := base.Add(time.Minute) // timestamp of "two"
	got, err := s.Scan(context.Background(), "chan", &resume, model.KeywordPolicy{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diff := cmp.Diff([]string{"three"}, texts(got)); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	conn := newFakeConn(makeHistory("go 1", "rust 1", "go 2", "go 3"))
	s := newTestScanner(conn, Options{BatchLimit: 2})
	policy := model.KeywordPolicy{Include: []string{"go"}}
	resume := base

	first, err := s.Scan(context.Background(), "chan", &resume, policy)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := s.Scan(context.Background(), "chan", &resume, policy)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated scan mismatch (-first +second):\n%s", diff)
	}
}

func TestScanChannelNotFound(t *testing.T) {
	conn := newFakeConn(nil)
	conn.notFound = true
	s := newTestScanner(conn, Options{})

	_, err := s.Scan(context.Background(), "missing", nil, model.KeywordPolicy{})
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("error = %v, want ErrChannelNotFound", err)
	}
	if IsRetryable(err) {
		t.Error("channel not found must not be retryable")
	}
	if !conn.closed {
		t.Error("connection was not closed")
	}
}

func TestScanHistoryErrorDiscardsPartialResults(t *testing.T) {
	conn := newFakeConn(makeHistory("a", "b", "c", "d"))
	conn.errAfter = 2
	s := newTestScanner(conn, Options{})

	got, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{})
	var sf *ScanFailedError
	if !errors.As(err, &sf) {
		t.Fatalf("error = %v, want *ScanFailedError", err)
	}
	if diff := cmp.Diff("chan", sf.Channel); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
	if got != nil {
		t.Errorf("expected no partial results, got %v", texts(got))
	}
	if !IsRetryable(err) {
		t.Error("history failure should be retryable")
	}
	if !conn.closed {
		t.Error("connection was not closed")
	}
}

func TestScanConnectError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cause := errors.New("session expired")
	s := New(&fakeConnector{err: cause}, Options{}, log)

	_, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{})
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if !IsRetryable(err) {
		t.Error("connect failure should be retryable")
	}
}

func TestScanCloseErrorIsNotPropagated(t *testing.T) {
	conn := newFakeConn(makeHistory("hello"))
	conn.closeErr = errors.New("already disconnected")
	s := newTestScanner(conn, Options{})

	got, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diff := cmp.Diff([]string{"hello"}, texts(got)); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanEmptyChannelID(t *testing.T) {
	conn := newFakeConn(nil)
	s := newTestScanner(conn, Options{})

	_, err := s.Scan(context.Background(), "", nil, model.KeywordPolicy{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("error = %v, want ErrInvalidRequest", err)
	}
	if conn.resolved != "" {
		t.Error("scanner should not connect for an invalid request")
	}
}

func TestScanPacingAppliesToEveryExaminedMessage(t *testing.T) {
	// only one message matches, but all four are paced
	conn := newFakeConn(makeHistory("skip", "", "skip", "match"))
	s := newTestScanner(conn, Options{Pacing: 20 * time.Millisecond})

	start := time.Now()
	got, err := s.Scan(context.Background(), "chan", nil, model.KeywordPolicy{Include: []string{"match"}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	elapsed := time.Since(start)

	if diff := cmp.Diff([]string{"match"}, texts(got)); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
	if elapsed < 55*time.Millisecond {
		t.Errorf("elapsed %v, expected at least three pacing intervals", elapsed)
	}
}

func TestScanCancelledContext(t *testing.T) {
	conn := newFakeConn(makeHistory("a", "b", "c"))
	s := newTestScanner(conn, Options{Pacing: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Scan(ctx, "chan", nil, model.KeywordPolicy{})
	if !IsRetryable(err) {
		t.Fatalf("error = %v, want *ScanFailedError", err)
	}
	if !conn.closed {
		t.Error("connection was not closed after cancellation")
	}
}

func TestScanPacingStopsAtDeadline(t *testing.T) {
	conn := newFakeConn(makeHistory("a", "b", "c"))
	s := newTestScanner(conn, Options{Pacing: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := s.Scan(ctx, "chan", nil, model.KeywordPolicy{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if !IsRetryable(err) {
		t.Errorf("error = %v, want *ScanFailedError", err)
	}
	if !conn.closed {
		t.Error("connection was not closed after the deadline")
	}
}

// windowedConn serves only the messages posted at or after earliest.
type windowedConn struct {
	*fakeConn
	earliest *time.Time
	err      error
}

func (w *windowedConn) Earliest(_ context.Context, _ platform.Channel) (*time.Time, error) {
	return w.earliest, w.err
}

type windowedConnector struct{ conn *windowedConn }

func (c windowedConnector) Connect(_ context.Context) (platform.Conn, error) { return c.conn, nil }

func TestScanBatchReportsHistoryGap(t *testing.T) {
	history := makeHistory("post 1", "post 2", "post 3")
	earliest := history[0].Date
	beforeWindow := base.Add(-19 * 24 * time.Hour)
	insideWindow := history[0].Date

	tests := []struct {
		name      string
		resume    *time.Time
		wantGap   bool
		wantTexts []string
	}{
		{name: "cursor older than window", resume: &beforeWindow, wantGap: true, wantTexts: []string{"post 1", "post 2"}},
		{name: "cursor inside window", resume: &insideWindow, wantTexts: []string{"post 2", "post 3"}},
		{name: "from start", resume: nil, wantTexts: []string{"post 1", "post 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			conn := &windowedConn{fakeConn: newFakeConn(history), earliest: &earliest}
			s := New(windowedConnector{conn: conn}, Options{BatchLimit: 2}, slog.New(slog.NewTextHandler(&logs, nil)))

			got, err := s.ScanBatch(context.Background(), "chan", tt.resume, model.KeywordPolicy{})
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if diff := cmp.Diff(tt.wantTexts, texts(got.Messages)); diff != "" {
				t.Errorf("ScanBatch() texts mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantGap, got.Gap); diff != "" {
				t.Errorf("Gap mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantGap, strings.Contains(logs.String(), "level=WARN msg=\"history gap")); diff != "" {
				t.Errorf("gap warning mismatch (-want +got):\n%s\nlogs: %s", diff, logs.String())
			}
		})
	}

	t.Run("earliest error", func(t *testing.T) {
		conn := &windowedConn{fakeConn: newFakeConn(history), err: errors.New("feed gone")}
		s := New(windowedConnector{conn: conn}, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if _, err := s.ScanBatch(context.Background(), "chan", &beforeWindow, model.KeywordPolicy{}); !IsRetryable(err) {
			t.Errorf("error = %v, want *ScanFailedError", err)
		}
		if !conn.closed {
			t.Error("connection was not closed")
		}
	})
}

func TestNewDefaults(t *testing.T) {
	s := newTestScanner(newFakeConn(nil), Options{BatchLimit: -3})
	if diff := cmp.Diff(DefaultBatchLimit, s.BatchLimit()); diff != "" {
		t.Errorf("BatchLimit() mismatch (-want +got):\n%s", diff)
	}
}
