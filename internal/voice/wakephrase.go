package voice

import (
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	edgeTrim   = " \t\n\r\f\v\"'`~"
	punctTrim  = " ,.!?;:-\"'`~"
	wakeSuffix = []string{" ", ",", ".", "!", "?", ":"}
)

// NormalizeTranscript lowercases text, collapses whitespace and drops
// surrounding quotes and trailing punctuation.
func NormalizeTranscript(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.Trim(s, edgeTrim)
	return strings.TrimRight(s, punctTrim)
}

// WakeStripper removes an optional leading wake phrase ("hey inbox, next
// page" becomes "next page").
type WakeStripper struct {
	Phrases []string
}

func NewWakeStripper(phrases []string) *WakeStripper {
	ps := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = NormalizeTranscript(p); p != "" {
			ps = append(ps, p)
		}
	}
	return &WakeStripper{Phrases: ps}
}

// Strip returns the normalized text after a leading wake phrase, and whether
// one was found. Text without a wake phrase comes back normalized.
func (w *WakeStripper) Strip(text string) (string, bool) {
	s := NormalizeTranscript(text)
	if w == nil {
		return s, false
	}
	for _, wp := range w.Phrases {
		if s == wp {
			return "", true
		}
		for _, suf := range wakeSuffix {
			if strings.HasPrefix(s, wp+suf) {
				return strings.TrimLeft(strings.TrimSpace(s[len(wp)+len(suf):]), punctTrim), true
			}
		}
	}
	return s, false
}
