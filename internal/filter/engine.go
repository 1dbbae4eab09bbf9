// Package filter implements the message keyword matching engine.
package filter

import (
	"strings"

	"reposter/internal/model"
)

// IsValid checks whether a message text passes the keyword policy.
// Include terms use OR logic (at least one must occur).
// Exclude terms use AND logic (none must occur).
// Matching is a case-insensitive substring test, so "rust" also matches "rusty".
func IsValid(text string, policy model.KeywordPolicy) bool {
	lower := strings.ToLower(text)

	include := normalize(policy.Include)
	if len(include) > 0 && !containsAny(lower, include) {
		return false
	}

	exclude := normalize(policy.Exclude)
	if len(exclude) > 0 && containsAny(lower, exclude) {
		return false
	}
	return true
}

// IsEmpty reports whether the policy accepts every text.
func IsEmpty(policy model.KeywordPolicy) bool {
	return len(normalize(policy.Include)) == 0 && len(normalize(policy.Exclude)) == 0
}

// ParseTerms splits a comma-separated list of terms, dropping blanks.
func ParseTerms(raw string) []string {
	var terms []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		terms = append(terms, s)
	}
	return terms
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// normalize lowercases and trims terms; blank terms are dropped.
func normalize(terms []string) []string {
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
