// Token counting for the compaction trigger.

package memory

import (
	"fmt"
	"strings"
)

// Tokenizer provides deterministic token counting for text. The encoding
// identifier is fixed at construction so every count for a session uses
// the same scheme.
type Tokenizer interface {
	CountTokens(text string) int
	Encoding() string
}

// NewTokenizer returns a tokenizer for the given encoding identifier
// (e.g. "o200k_base"). All supported encodings currently share the same
// estimator; the identifier is kept so counts stay attributable to one
// scheme.
func NewTokenizer(encoding string) Tokenizer {
	return &estimatorTokenizer{encoding: encoding}
}

// estimatorTokenizer counts tokens with a character heuristic:
// roughly 4 characters per token for English text, with a whitespace
// correction. Deterministic for a given input and encoding.
type estimatorTokenizer struct {
	encoding string
}

func (t *estimatorTokenizer) Encoding() string { return t.encoding }

func (t *estimatorTokenizer) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	// Whitespace-heavy text has fewer tokens per character.
	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// CountMessageTokens counts tokens for a slice of messages, including the
// per-message role prefix the model sees ("user: ...").
func CountMessageTokens(tz Tokenizer, messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += tz.CountTokens(fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	return total
}
