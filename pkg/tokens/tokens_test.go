package tokens

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounter_CachesEncoder(t *testing.T) {
	a, err := NewCounter("gpt-4o")
	require.NoError(t, err)
	b, err := NewCounter("gpt-4o")
	require.NoError(t, err)
	assert.Same(t, a.encoding, b.encoding)
}

func TestNewCounter_UnknownModelFallsBack(t *testing.T) {
	c, err := NewCounter("not-a-real-model")
	require.NoError(t, err)
	assert.Positive(t, c.Count("hello world"))
}

func TestCounter_Count(t *testing.T) {
	c, err := NewCounter("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count(""))
	assert.Positive(t, c.Count("The quick brown fox jumps over the lazy dog."))
}

func TestTruncateMiddle(t *testing.T) {
	s := strings.Repeat("a", 500) + strings.Repeat("z", 500)

	out := TruncateMiddle(s, 200)
	assert.LessOrEqual(t, len(out), 200+len(ElisionMarker))
	assert.True(t, strings.HasPrefix(out, "aaa"))
	assert.True(t, strings.HasSuffix(out, "zzz"))
	assert.Contains(t, out, ElisionMarker)

	// Under budget: unchanged.
	assert.Equal(t, "short", TruncateMiddle("short", 200))
	// Zero budget disables truncation.
	assert.Equal(t, s, TruncateMiddle(s, 0))
}

func TestTruncateHead(t *testing.T) {
	s := strings.Repeat("x", 1000)

	out := TruncateHead(s, 100)
	assert.Len(t, out, 100)
	assert.True(t, strings.HasSuffix(out, TruncationMarker))

	assert.Equal(t, "short", TruncateHead("short", 100))
}

func TestCounter_Truncate(t *testing.T) {
	c, err := NewCounter("gpt-4o")
	require.NoError(t, err)

	s := strings.Repeat("one two three four five ", 200)
	out := c.Truncate(s, 50)
	assert.LessOrEqual(t, c.Count(out), 50)
	assert.True(t, strings.HasPrefix(s, out))

	assert.Equal(t, "short", c.Truncate("short", 50))
}

func TestClip_RuneBoundary(t *testing.T) {
	s := strings.Repeat("héllo🙂 ", 100)

	for _, n := range []int{1, 2, 3, 10, 11, 101, 500} {
		out := Clip(s, n)
		assert.LessOrEqual(t, len(out), n)
		assert.True(t, utf8.ValidString(out), "cut at %d split a rune", n)
	}
	assert.Equal(t, s, Clip(s, len(s)))
	assert.Equal(t, "", Clip(s, 0))
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	s := strings.Repeat("héllo🙂 ", 300)

	for _, budget := range []int{63, 101, 257} {
		assert.True(t, utf8.ValidString(TruncateMiddle(s, budget)), "middle budget %d", budget)
		assert.True(t, utf8.ValidString(TruncateHead(s, budget)), "head budget %d", budget)
	}
}

func TestWordLimitClause(t *testing.T) {
	assert.Contains(t, WordLimitClause(250), "MAX WORDS: 250")
}
