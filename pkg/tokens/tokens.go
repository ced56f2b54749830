// Package tokens provides token counting and text truncation helpers used by
// the response-length control layer. Encoder instances are expensive to build
// and are cached process-wide per model name.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// Counter counts tokens for one model. Safe for concurrent use.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewCounter returns a counter for the given model, reusing a cached encoder
// when one exists. Unknown models fall back to cl100k_base.
func NewCounter(model string) (*Counter, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &Counter{encoding: enc, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get encoding for %q: %w", model, err)
		}
	}
	encodingCache[model] = enc
	return &Counter{encoding: enc, model: model}, nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Truncate returns text cut to at most max tokens; text already within the
// limit is returned unchanged. Decoding a token prefix can end mid-rune, so
// any trailing partial sequence is dropped.
func (c *Counter) Truncate(text string, max int) string {
	ids := c.encoding.Encode(text, nil, nil)
	if len(ids) <= max {
		return text
	}
	out := c.encoding.Decode(ids[:max])
	for len(out) > 0 {
		r, size := utf8.DecodeLastRuneInString(out)
		if r != utf8.RuneError || size > 1 {
			break
		}
		out = out[:len(out)-1]
	}
	return out
}

// Model returns the model name this counter was created for.
func (c *Counter) Model() string { return c.model }
