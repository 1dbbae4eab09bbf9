package bot

import (
	"fmt"
	"strings"

	"reposter/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"

	previewLen = 120
)

// FormatWatchList formats a list of watches for display.
func FormatWatchList(watches []model.Watch) string {
	if len(watches) == 0 {
		return "No watches yet. Use /watch <channel> to add one."
	}
	var b strings.Builder
	b.WriteString("Watches:\n")
	for _, w := range watches {
		fmt.Fprintf(&b, "\n#%d %s  (every %d min) [%s]\n", w.ID, w.Channel, w.IntervalMinutes, statusLabel(w.IsActive))
		if len(w.Include) == 0 && len(w.Exclude) == 0 {
			b.WriteString("   no keywords\n")
		} else {
			fmt.Fprintf(&b, "   %d include, %d exclude keywords\n", len(w.Include), len(w.Exclude))
		}
	}
	return b.String()
}

// FormatWatchInfo formats detailed information about a single watch.
func FormatWatchInfo(w *model.Watch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]\n", w.ID, w.Channel, statusLabel(w.IsActive))
	fmt.Fprintf(&b, "Interval: every %d min\n", w.IntervalMinutes)
	if w.LastCheckAt != nil {
		fmt.Fprintf(&b, "Last check: %s\n", w.LastCheckAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	fmt.Fprintf(&b, "Include: %s\n", keywordsLabel(w.Include))
	fmt.Fprintf(&b, "Exclude: %s\n", keywordsLabel(w.Exclude))
	return b.String()
}

// FormatMessageList formats stored messages, newest first.
func FormatMessageList(msgs []model.Message) string {
	if len(msgs) == 0 {
		return "No stored messages. Use /scan <watch_id> to fetch some."
	}
	var b strings.Builder
	b.WriteString("Recent messages:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n#%d [%s] %s\n", m.ID, m.Channel, m.Date.UTC().Format("2006-01-02 15:04"))
		b.WriteString(preview(m.Text))
		b.WriteString("\n")
	}
	b.WriteString("\nUse /transform <message_id> [prompt_id] to rewrite one.")
	return b.String()
}

// FormatRewrite formats a stored rewrite.
func FormatRewrite(rw *model.Rewrite) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite #%d of message #%d\n", rw.ID, rw.MessageID)
	fmt.Fprintf(&b, "Title: %s\n", rw.Title)
	if rw.ImagePath != "" {
		fmt.Fprintf(&b, "Image: %s\n", rw.ImagePath)
	} else {
		b.WriteString("Image: none\n")
	}
	b.WriteString("\n")
	b.WriteString(rw.Text)
	fmt.Fprintf(&b, "\n\nUse /publish %d <channel> to post it.", rw.ID)
	return b.String()
}

func statusLabel(active bool) string {
	if active {
		return statusActive
	}
	return statusPaused
}

func keywordsLabel(terms []string) string {
	if len(terms) == 0 {
		return "none"
	}
	return strings.Join(terms, ", ")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
