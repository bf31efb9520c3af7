// Package query turns a raw user query into a disambiguated, context-rich
// prompt for answer generation.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/llm"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/logger"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
)

// MaxClarifyingQuestions caps how many questions survive normalization.
const MaxClarifyingQuestions = 3

// Understanding is the result of one query-understanding pass. Ephemeral:
// produced and consumed within a single pipeline run.
type Understanding struct {
	OriginalQuery           string   `json:"original_query"`
	IsAmbiguous             bool     `json:"is_ambiguous"`
	RewrittenQuery          string   `json:"rewritten_query,omitempty"`
	NeededContextFromMemory []string `json:"needed_context_from_memory"`
	ClarifyingQuestions     []string `json:"clarifying_questions"`
	FinalAugmentedContext   string   `json:"final_augmented_context"`
}

// EffectiveQuery is the query handed to answer generation: the rewrite
// when one applies, the original otherwise.
func (u *Understanding) EffectiveQuery() string {
	if u.IsAmbiguous && u.RewrittenQuery != "" {
		return u.RewrittenQuery
	}
	return u.OriginalQuery
}

const understandingSchema = `{
  "type": "object",
  "properties": {
    "is_ambiguous": {"type": "boolean"},
    "rewritten_query": {"type": "string"},
    "needed_context_from_memory": {"type": "array", "items": {"type": "string"}},
    "clarifying_questions": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["is_ambiguous"]
}`

const understandSystem = `You are a query understanding assistant. Analyze the user's query and:

1. Determine if the query is ambiguous (missing context, unclear intent, vague references)
2. If ambiguous, rewrite it to be clearer based on available context
3. Identify which parts of session memory would help answer the query, as dot-paths into the summary (e.g. "user_profile.preferences", "key_facts")
4. If the query is still unclear after rewriting, generate 1-3 clarifying questions

Be concise. Focus on understanding user intent. Respond with a JSON object.`

// Engine classifies ambiguity, rewrites queries, and selects the summary
// fields worth injecting into the final prompt.
type Engine struct {
	client llm.LLMClient
	model  string
}

// NewEngine creates a query-understanding engine.
func NewEngine(client llm.LLMClient, model string) *Engine {
	return &Engine{client: client, model: model}
}

// Understand runs one query-understanding pass against the recent
// messages and the session summary (nil when none exists yet).
//
// Model failures degrade to a non-ambiguous result carrying the basic
// augmented context; the pipeline proceeds with that rather than aborting.
func (e *Engine) Understand(ctx context.Context, query string, recent []memory.Message, summary *memory.SessionSummary) (*Understanding, error) {
	recentContext := "No recent messages."
	if len(recent) > 0 {
		recentContext = strings.TrimRight(memory.RenderMessages(recent), "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this query:\n\nQuery: %s\n\nRecent conversation:\n%s\n", query, recentContext)
	if summary != nil {
		b.WriteString("\nSession Summary:\n")
		b.WriteString(memory.RenderSummary(summary))
	}
	b.WriteString("\nProvide your analysis as structured output.")

	var result Understanding
	err := llm.GenerateStructured(ctx, e.client, e.model, understandSystem, b.String(), understandingSchema, &result)
	if err != nil {
		logger.Logger.Warn("query understanding degraded", "error", err)
		return &Understanding{
			OriginalQuery:         query,
			FinalAugmentedContext: basicContext(recentContext, query, len(recent) > 0),
		}, nil
	}

	result.OriginalQuery = query
	normalize(&result)
	result.FinalAugmentedContext = e.buildContext(&result, recentContext, summary, len(recent) > 0)

	return &result, nil
}

// normalize enforces the typed contract on raw model output: a query
// judged unambiguous carries no rewrite and no questions, and questions
// are capped at MaxClarifyingQuestions.
func normalize(u *Understanding) {
	if !u.IsAmbiguous {
		u.RewrittenQuery = ""
		u.ClarifyingQuestions = nil
	}
	if len(u.ClarifyingQuestions) > MaxClarifyingQuestions {
		u.ClarifyingQuestions = u.ClarifyingQuestions[:MaxClarifyingQuestions]
	}
}

func (e *Engine) buildContext(u *Understanding, recentContext string, summary *memory.SessionSummary, hasRecent bool) string {
	var parts []string

	if hasRecent {
		parts = append(parts, "Recent conversation:\n"+recentContext)
	}

	if len(u.NeededContextFromMemory) > 0 {
		if memoryContext := memory.ContextFromSummary(summary, u.NeededContextFromMemory); memoryContext != "" {
			parts = append(parts, "From session memory:\n"+memoryContext)
		}
	}

	parts = append(parts, "User query: "+u.EffectiveQuery())
	return strings.Join(parts, "\n\n")
}

func basicContext(recentContext, query string, hasRecent bool) string {
	if !hasRecent {
		return "User query: " + query
	}
	return "Recent conversation:\n" + recentContext + "\n\nUser query: " + query
}
