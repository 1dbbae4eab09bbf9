package platform

import (
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)

// Username extracts a public channel username from an identifier such as
// "name", "@name" or "https://t.me/name". It reports false when the
// identifier cannot name a public channel.
func Username(channelID string) (string, bool) {
	s := strings.TrimSpace(channelID)
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "s/")
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSuffix(s, "/")
	if !usernameRe.MatchString(s) {
		return "", false
	}
	return s, true
}
