package tokens

import (
	"fmt"
	"unicode/utf8"
)

// ElisionMarker is inserted where middle-truncation removed text.
const ElisionMarker = "\n...[content elided]...\n"

// TruncationMarker terminates head-truncated text.
const TruncationMarker = "\n...[truncated]"

// Clip returns s cut to at most n bytes, backing the cut up to the nearest
// rune boundary so a multi-byte sequence is never split.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// clipTail returns the trailing n bytes of s, advancing the start past any
// partial rune.
func clipTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// TruncateMiddle keeps the head and tail of s within the given character
// budget, inserting an elision marker between them. The head receives half
// the budget and the tail a quarter; the remainder absorbs the marker.
// Used for social outputs where both the opening summary and the closing
// verdict matter.
func TruncateMiddle(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	head := budget / 2
	tail := budget / 4
	if head+tail+len(ElisionMarker) > len(s) {
		return s
	}
	return Clip(s, head) + ElisionMarker + clipTail(s, tail)
}

// TruncateHead keeps the leading budget characters of s and appends a
// terminal marker. Used for debate perspective responses where the argument
// front-loads its thesis.
func TruncateHead(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	cut := budget - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	return Clip(s, cut) + TruncationMarker
}

// WordLimitClause renders the instruction injected into prompts to cap the
// response length.
func WordLimitClause(words int) string {
	return fmt.Sprintf("MAX WORDS: %d. Keep your response within this limit.", words)
}
