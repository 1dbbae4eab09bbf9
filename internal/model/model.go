// Package model defines the domain types used across the application.
package model

import "time"

// Message is a channel post captured by a scan.
type Message struct {
	ID      int64
	Channel string
	Text    string
	Date    time.Time
}

// KeywordPolicy decides which message texts a scan accepts.
// Include terms use OR logic, any Exclude term rejects the text.
type KeywordPolicy struct {
	Include []string
	Exclude []string
}

// ScanMode selects where a scan resumes from.
type ScanMode string

// Supported scan modes.
const (
	ScanFromStart ScanMode = "start"
	ScanContinue  ScanMode = "continue"
	ScanFromDate  ScanMode = "date"
)

// Prompt is a named set of AI instructions used to transform a message.
type Prompt struct {
	ID            int64
	Name          string
	MessagePrompt string
	ImagePrompt   string
	NamePrompt    string
}

// Rewrite is a transformed message ready to be published.
type Rewrite struct {
	ID          int64
	MessageID   int64
	Title       string
	Original    string
	Text        string
	ImagePath   string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// Watch is a periodic scan subscription for a channel.
type Watch struct {
	ID              int64
	Channel         string
	Include         []string
	Exclude         []string
	IntervalMinutes int
	IsActive        bool
	LastCheckAt     *time.Time
	CreatedAt       time.Time
}

// Policy returns the keyword policy configured on the watch.
func (w Watch) Policy() KeywordPolicy {
	return KeywordPolicy{Include: w.Include, Exclude: w.Exclude}
}
