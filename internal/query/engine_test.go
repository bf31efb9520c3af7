package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/llm"
	"github.com/LeNguyenAnhKhoa/shorttem-memory-agent/internal/memory"
)

type cannedClient struct {
	reply string
	err   error
}

func (c *cannedClient) Chat(ctx context.Context, model string, messages []llm.ChatMessage, opts llm.ChatOptions) (llm.LLMResponse, error) {
	if c.err != nil {
		return llm.LLMResponse{}, c.err
	}
	return llm.LLMResponse{Assistant: llm.ChatMessage{Role: llm.RoleAssistant, Content: c.reply}}, nil
}

func TestUnderstandUnambiguous(t *testing.T) {
	client := &cannedClient{reply: `{
		"is_ambiguous": false,
		"needed_context_from_memory": [],
		"clarifying_questions": []
	}`}
	engine := NewEngine(client, "test-model")

	u, err := engine.Understand(context.Background(), "What is the capital of Vietnam?", nil, nil)
	require.NoError(t, err)

	assert.False(t, u.IsAmbiguous)
	assert.Empty(t, u.RewrittenQuery)
	assert.Empty(t, u.ClarifyingQuestions)
	assert.Equal(t, "What is the capital of Vietnam?", u.EffectiveQuery())
	assert.Contains(t, u.FinalAugmentedContext, "User query: What is the capital of Vietnam?")
}

func TestUnderstandAmbiguousRewrite(t *testing.T) {
	client := &cannedClient{reply: `{
		"is_ambiguous": true,
		"rewritten_query": "What is the weather in Da Nang today?",
		"needed_context_from_memory": [],
		"clarifying_questions": ["Which day do you mean?"]
	}`}
	engine := NewEngine(client, "test-model")

	recent := []memory.Message{
		{Role: memory.RoleUser, Content: "I'm visiting Da Nang"},
	}
	u, err := engine.Understand(context.Background(), "what about the weather there", recent, nil)
	require.NoError(t, err)

	assert.True(t, u.IsAmbiguous)
	assert.Equal(t, "What is the weather in Da Nang today?", u.EffectiveQuery())
	assert.Len(t, u.ClarifyingQuestions, 1)
	assert.Contains(t, u.FinalAugmentedContext, "Recent conversation:")
	assert.Contains(t, u.FinalAugmentedContext, "User query: What is the weather in Da Nang today?")
}

func TestUnderstandClearsRewriteWhenUnambiguous(t *testing.T) {
	// A model may return a rewrite and questions despite judging the query
	// clear; the typed contract strips them.
	client := &cannedClient{reply: `{
		"is_ambiguous": false,
		"rewritten_query": "spurious rewrite",
		"clarifying_questions": ["spurious question"]
	}`}
	engine := NewEngine(client, "test-model")

	u, err := engine.Understand(context.Background(), "clear query", nil, nil)
	require.NoError(t, err)

	assert.False(t, u.IsAmbiguous)
	assert.Empty(t, u.RewrittenQuery)
	assert.Empty(t, u.ClarifyingQuestions)
	assert.Equal(t, "clear query", u.EffectiveQuery())
}

func TestUnderstandCapsClarifyingQuestions(t *testing.T) {
	client := &cannedClient{reply: `{
		"is_ambiguous": true,
		"rewritten_query": "expanded query",
		"clarifying_questions": ["q1", "q2", "q3", "q4", "q5"]
	}`}
	engine := NewEngine(client, "test-model")

	u, err := engine.Understand(context.Background(), "vague", nil, nil)
	require.NoError(t, err)

	assert.Len(t, u.ClarifyingQuestions, MaxClarifyingQuestions)
	assert.Equal(t, []string{"q1", "q2", "q3"}, u.ClarifyingQuestions)
}

func TestUnderstandPullsMemoryContext(t *testing.T) {
	client := &cannedClient{reply: `{
		"is_ambiguous": false,
		"needed_context_from_memory": ["user_profile.preferences", "key_facts"]
	}`}
	engine := NewEngine(client, "test-model")

	summary := &memory.SessionSummary{
		UserProfile: memory.UserProfile{Preferences: []string{"vegetarian food"}},
		KeyFacts:    []string{"traveling with two kids"},
	}
	u, err := engine.Understand(context.Background(), "recommend a restaurant", nil, summary)
	require.NoError(t, err)

	assert.Contains(t, u.FinalAugmentedContext, "From session memory:")
	assert.Contains(t, u.FinalAugmentedContext, "vegetarian food")
	assert.Contains(t, u.FinalAugmentedContext, "traveling with two kids")
}

func TestUnderstandDegradesOnModelFailure(t *testing.T) {
	client := &cannedClient{err: errors.New("model unavailable")}
	engine := NewEngine(client, "test-model")

	recent := []memory.Message{
		{Role: memory.RoleUser, Content: "earlier message"},
	}
	u, err := engine.Understand(context.Background(), "my query", recent, nil)

	// Degraded, never an error: the pipeline proceeds with basic context.
	require.NoError(t, err)
	assert.False(t, u.IsAmbiguous)
	assert.Equal(t, "my query", u.OriginalQuery)
	assert.Contains(t, u.FinalAugmentedContext, "earlier message")
	assert.Contains(t, u.FinalAugmentedContext, "User query: my query")
}

func TestUnderstandDegradesOnGarbageOutput(t *testing.T) {
	client := &cannedClient{reply: "not json at all"}
	engine := NewEngine(client, "test-model")

	u, err := engine.Understand(context.Background(), "my query", nil, nil)
	require.NoError(t, err)
	assert.False(t, u.IsAmbiguous)
	assert.Equal(t, "User query: my query", u.FinalAugmentedContext)
}
