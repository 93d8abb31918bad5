package otel

import (
	"fmt"
	"strings"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a level name to a Level. The empty string parses as
// LevelDebug so that an absent flag or query parameter filters nothing.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelDebug, nil
	}
	lv := Level(strings.ToLower(s))
	if _, ok := levelRank[lv]; !ok {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return lv, nil
}

// AtLeast reports whether l is at or above min. Events without a level
// count as info.
func (l Level) AtLeast(min Level) bool {
	if l == "" {
		l = LevelInfo
	}
	return levelRank[l] >= levelRank[min]
}

// Filter selects events from a RingBuffer or a JSONL log. Zero fields
// match everything.
type Filter struct {
	Kind     string // prefix, e.g. "insight." or "fetch.error"
	Category string
	Comp     string
	MinLevel Level
	Limit    int // newest Limit matches; <= 0 means no cap
}

// Match reports whether e passes every non-zero field of f.
func (f Filter) Match(e Event) bool {
	if f.Kind != "" && !strings.HasPrefix(string(e.Kind), f.Kind) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Comp != "" && e.Comp != f.Comp {
		return false
	}
	if f.MinLevel != "" && !e.Level.AtLeast(f.MinLevel) {
		return false
	}
	return true
}

// Select returns the newest f.Limit events of events (oldest first) that
// match f. The input must be in chronological order.
func (f Filter) Select(events []Event) []Event {
	var out []Event
	for i := len(events) - 1; i >= 0; i-- {
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		if f.Match(events[i]) {
			out = append(out, events[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
