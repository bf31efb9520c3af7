package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// GenerateStructured invokes the model in JSON mode and decodes the reply
// into out after validating it against the given JSON schema. This is the
// single place where non-deterministic model output meets a typed
// contract: anything that fails to parse or validate surfaces as a
// *StructuredOutputError so callers can degrade instead of aborting.
func GenerateStructured(ctx context.Context, client LLMClient, model, system, user, schema string, out any) error {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}

	opts := ChatOptions{
		Temperature:     0.1,
		MaxOutputTokens: 1024,
		JSONMode:        true,
	}

	resp, err := client.Chat(ctx, model, msgs, opts)
	if err != nil {
		return fmt.Errorf("structured generation: %w", err)
	}

	raw := ExtractJSON(resp.Assistant.Content)
	if raw == "" {
		return &StructuredOutputError{Schema: schema, Errors: []string{"no JSON object in model output"}}
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewStringLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &StructuredOutputError{Schema: schema, Errors: []string{err.Error()}}
	}
	if !result.Valid() {
		var errorMsgs []string
		for _, verr := range result.Errors() {
			errorMsgs = append(errorMsgs, verr.String())
		}
		return &StructuredOutputError{Schema: schema, Errors: errorMsgs}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &StructuredOutputError{Schema: schema, Errors: []string{err.Error()}}
	}
	return nil
}

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown code fences and surrounding prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if fenced, ok := stripFence(s); ok {
		s = fenced
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s), true
}
