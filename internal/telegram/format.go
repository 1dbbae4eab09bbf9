package telegram

import (
	"fmt"
	"strings"
	"time"

	"reposter/internal/model"
)

const previewLen = 200

// FormatScanReport formats the messages found by a scan as an operator notification.
func FormatScanReport(channel string, msgs []model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d new message(s)\n", channel, len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n#%d %s\n", m.ID, m.Date.UTC().Format("2006-01-02 15:04 UTC"))
		b.WriteString(preview(m.Text, previewLen))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatHistoryGap warns that messages posted between resume and earliest
// can no longer be read from the channel.
func FormatHistoryGap(channel string, resume, earliest time.Time) string {
	return fmt.Sprintf("[%s] warning: history before %s is no longer available, messages after %s may be missing\n",
		channel, earliest.UTC().Format("2006-01-02 15:04 UTC"), resume.UTC().Format("2006-01-02 15:04 UTC"))
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
