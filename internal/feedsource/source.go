// Package feedsource reads channel history from syndication feeds, such as
// the RSS bridges that mirror public Telegram channels.
package feedsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"reposter/internal/model"
	"reposter/internal/platform"
)

// DefaultURLTemplate points at the public RSSHub Telegram channel route.
const DefaultURLTemplate = "https://rsshub.app/telegram/channel/%s"

const maxBodySize = 5 * 1024 * 1024

var errClosed = errors.New("connection closed")

var lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>`)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source implements platform.Connector on top of per-channel feeds.
type Source struct {
	client      HTTPClient
	urlTemplate string
	userAgent   string
}

// New creates a Source. urlTemplate must contain one %s verb for the
// channel username; an empty template selects DefaultURLTemplate.
func New(client HTTPClient, urlTemplate string) *Source {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Source{
		client:      client,
		urlTemplate: urlTemplate,
		userAgent:   "Reposter/1.0",
	}
}

// Connect opens a connection. Feeds are stateless, so this never blocks.
func (s *Source) Connect(_ context.Context) (platform.Conn, error) {
	return &conn{src: s}, nil
}

type conn struct {
	src    *Source
	closed bool
}

// ResolveChannel downloads and parses the channel feed.
func (c *conn) ResolveChannel(ctx context.Context, channelID string) (platform.Channel, error) {
	if c.closed {
		return platform.Channel{}, errClosed
	}
	name, ok := platform.Username(channelID)
	if !ok {
		return platform.Channel{}, fmt.Errorf("invalid channel name %q: %w", channelID, platform.ErrChannelNotFound)
	}

	feed, err := c.src.fetch(ctx, fmt.Sprintf(c.src.urlTemplate, url.PathEscape(name)))
	if err != nil {
		return platform.Channel{}, err
	}
	return platform.Channel{ID: name, Title: feed.Title, Handle: feed}, nil
}

// History yields the feed items oldest-first, strictly after the given time.
func (c *conn) History(_ context.Context, ch platform.Channel, after *time.Time) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		if c.closed {
			yield(model.Message{}, errClosed)
			return
		}
		feed, ok := ch.Handle.(*gofeed.Feed)
		if !ok {
			yield(model.Message{}, fmt.Errorf("channel %q was not resolved by this connection", ch.ID))
			return
		}
		for _, msg := range Messages(feed.Items) {
			if after != nil && !msg.Date.After(*after) {
				continue
			}
			msg.Channel = ch.ID
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Earliest returns the date of the oldest item the feed still carries.
// Feeds keep only their latest posts, so a cursor older than this date
// means some history can no longer be read.
func (c *conn) Earliest(_ context.Context, ch platform.Channel) (*time.Time, error) {
	if c.closed {
		return nil, errClosed
	}
	feed, ok := ch.Handle.(*gofeed.Feed)
	if !ok {
		return nil, fmt.Errorf("channel %q was not resolved by this connection", ch.ID)
	}
	msgs := Messages(feed.Items)
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0].Date, nil
}

func (c *conn) Close() error {
	if c.closed {
		return errClosed
	}
	c.closed = true
	return nil
}

func (s *Source) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("feed %s: %w", feedURL, platform.ErrChannelNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Messages converts feed items to messages ordered oldest-first.
// Items without a timestamp are dropped; items without text are kept with
// an empty Text so that callers can skip them.
func Messages(items []*gofeed.Item) []model.Message {
	msgs := make([]model.Message, 0, len(items))
	for _, item := range items {
		date := item.PublishedParsed
		if date == nil {
			date = item.UpdatedParsed
		}
		if date == nil {
			continue
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		msgs = append(msgs, model.Message{Text: PlainText(body), Date: date.UTC()})
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Date.Before(msgs[j].Date) })
	return msgs
}

// PlainText strips HTML markup, keeping line breaks.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	html = lineBreakRe.ReplaceAllString(html, "$0\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style").Remove()

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
