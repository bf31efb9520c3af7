package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/llm"
)

// Summarizer compacts a message window plus the prior summary into a new
// SessionSummary. baseIndex is the absolute log index of window[0].
type Summarizer interface {
	Summarize(ctx context.Context, window []Message, prior *SessionSummary, baseIndex int) (*SessionSummary, error)
}

const summarySchema = `{
  "type": "object",
  "properties": {
    "user_profile": {
      "type": "object",
      "properties": {
        "preferences": {"type": "array", "items": {"type": "string"}},
        "constraints": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["preferences", "constraints"]
    },
    "key_facts": {"type": "array", "items": {"type": "string"}},
    "decisions": {"type": "array", "items": {"type": "string"}},
    "open_questions": {"type": "array", "items": {"type": "string"}},
    "todos": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["user_profile", "key_facts", "decisions", "open_questions", "todos"]
}`

const summarizeSystem = `You are a conversation summarizer. Analyze the conversation and extract:
1. User profile: preferences and constraints mentioned
2. Key facts: important information discussed
3. Decisions: any decisions made
4. Open questions: unresolved questions
5. Todos: action items mentioned

Be concise and focus on information that would be useful for future context.
Respond with a JSON object matching the requested fields.`

// LLMSummarizer implements Summarizer with a structured model call.
type LLMSummarizer struct {
	client llm.LLMClient
	model  string
}

// NewLLMSummarizer creates a model-backed summarizer.
func NewLLMSummarizer(client llm.LLMClient, model string) *LLMSummarizer {
	return &LLMSummarizer{client: client, model: model}
}

// Summarize folds the window and the prior summary into a fresh summary.
// The prior summary is carried forward through the model's own reasoning,
// not mechanical concatenation. The summarized range is stamped from the
// inputs, never taken from model output.
func (s *LLMSummarizer) Summarize(ctx context.Context, window []Message, prior *SessionSummary, baseIndex int) (*SessionSummary, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("empty compaction window")
	}

	var b strings.Builder
	if prior != nil {
		b.WriteString("Previous summary of this session (fold its content into the new summary):\n")
		b.WriteString(RenderSummary(prior))
		b.WriteString("\n\n")
	}
	b.WriteString("Summarize this conversation:\n\n")
	b.WriteString(RenderMessages(window))

	var summary SessionSummary
	err := llm.GenerateStructured(ctx, s.client, s.model, summarizeSystem, b.String(), summarySchema, &summary)
	if err != nil {
		return nil, fmt.Errorf("summarize window: %w", err)
	}

	summary.MessageRangeSummarized = MessageRange{
		From: baseIndex,
		To:   baseIndex + len(window) - 1,
	}
	return &summary, nil
}

// RenderMessages flattens messages into "role: content" lines for prompts.
func RenderMessages(ms []Message) string {
	var b strings.Builder
	for _, m := range ms {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSummary flattens a summary into labeled lines for prompts.
func RenderSummary(s *SessionSummary) string {
	var b strings.Builder
	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.Join(items, ", "))
		b.WriteString("\n")
	}
	writeList("User preferences", s.UserProfile.Preferences)
	writeList("Constraints", s.UserProfile.Constraints)
	writeList("Key facts", s.KeyFacts)
	writeList("Decisions", s.Decisions)
	writeList("Open questions", s.OpenQuestions)
	writeList("Todos", s.Todos)
	return b.String()
}
