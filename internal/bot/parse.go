package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"reposter/internal/filter"
)

const (
	defaultIntervalMinutes = 60
	maxIntervalMinutes     = 1440
)

// WatchArgs holds the parsed arguments of the /watch command.
type WatchArgs struct {
	Channel         string
	IntervalMinutes int
}

// ParseWatchArgs parses arguments for /watch.
// Format: <channel> [minutes]
func ParseWatchArgs(args string) (WatchArgs, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return WatchArgs{}, fmt.Errorf("usage: /watch <channel> [minutes]")
	}
	wa := WatchArgs{Channel: parts[0], IntervalMinutes: defaultIntervalMinutes}
	if len(parts) == 2 {
		mins, err := parseMinutes(parts[1])
		if err != nil {
			return WatchArgs{}, err
		}
		wa.IntervalMinutes = mins
	}
	return wa, nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParseIntervalArgs extracts a watch ID and interval in minutes.
func ParseIntervalArgs(args string) (int64, int, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("usage: /interval <id> <minutes>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid watch ID %q", parts[0])
	}
	mins, err := parseMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return id, mins, nil
}

// ParseKeywordArgs extracts a watch ID and a comma separated keyword list.
// An empty list clears the keywords.
func ParseKeywordArgs(args string) (int64, []string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if parts[0] == "" {
		return 0, nil, fmt.Errorf("usage: /include|/exclude <id> [word, phrase, ...]")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid watch ID %q", parts[0])
	}
	var terms []string
	if len(parts) == 2 {
		terms = filter.ParseTerms(parts[1])
	}
	return id, terms, nil
}

// ParseTransformArgs extracts a message ID and an optional prompt ID.
// A missing prompt ID is 0, which selects the default prompts.
func ParseTransformArgs(args string) (int64, int64, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("usage: /transform <message_id> [prompt_id]")
	}
	msgID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message ID %q", parts[0])
	}
	var promptID int64
	if len(parts) == 2 {
		if promptID, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid prompt ID %q", parts[1])
		}
	}
	return msgID, promptID, nil
}

// ParsePublishArgs extracts a rewrite ID and the target channel.
func ParsePublishArgs(args string) (int64, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("usage: /publish <rewrite_id> <channel>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid rewrite ID %q", parts[0])
	}
	return id, parts[1], nil
}

// ParseEditArgs extracts a rewrite ID and the replacement text, which may
// span several lines.
func ParseEditArgs(args string) (int64, string, error) {
	args = strings.TrimSpace(args)
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return 0, "", fmt.Errorf("usage: /edit <rewrite_id> <text>")
	}
	idPart, text := args[:i], strings.TrimSpace(args[i:])
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid rewrite ID %q", idPart)
	}
	return id, text, nil
}

func parseMinutes(s string) (int, error) {
	mins, err := strconv.Atoi(s)
	if err != nil || mins < 1 || mins > maxIntervalMinutes {
		return 0, fmt.Errorf("interval must be between 1 and %d minutes", maxIntervalMinutes)
	}
	return mins, nil
}
