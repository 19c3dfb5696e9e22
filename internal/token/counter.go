package token

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Counter counts BPE tokens with the cl100k_base vocabulary, matching the
// accounting of the target models closely enough to keep segment budgets from
// overflowing the context window.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter loads the tokenizer vocabulary once. It fails fast when the
// vocabulary cannot be initialized; counting with a different tokenizer would
// silently break every downstream budget.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base tokenizer: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		// Encoding is infallible for valid UTF-8; approximate rather than
		// stall the pipeline if it ever isn't.
		log.Warn("Token encoding failed, approximating by rune count: %v", err)
		return len([]rune(text))
	}
	return len(ids)
}

// CountAny coerces non-string input to its string form before counting.
func (c *Counter) CountAny(value any) int {
	if s, ok := value.(string); ok {
		return c.Count(s)
	}
	return c.Count(fmt.Sprint(value))
}
