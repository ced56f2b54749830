package agents

import "regexp"

// RedactionMarker replaces social-media source names in the news report.
// The news analyst must not launder social chatter as traditional news.
const RedactionMarker = "[social-source]"

var socialSourcePattern = regexp.MustCompile(`(?i)\b(reddit|wallstreetbets|wsb|stocktwits|twitter)\b`)

// ScrubSocialSources replaces every social-media source name in the text
// with the redaction marker. Matching is case-insensitive on whole words.
func ScrubSocialSources(text string) string {
	return socialSourcePattern.ReplaceAllString(text, RedactionMarker)
}
