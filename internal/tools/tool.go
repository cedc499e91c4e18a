// Package tools implements the single-shot capabilities wired into each
// voice agent: per-chat document search, web search and multimodal readers
// over uploaded attachments.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is one capability exposed to the agent. Run returns text for the
// model to speak; failures surface as human-readable fallback strings, never
// as errors, so a broken tool cannot derail the dialogue.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Run         func(ctx context.Context, input json.RawMessage) string
}

// queryInput is the shared input shape for free-text query tools.
type queryInput struct {
	Query string `json:"query"`
}

var queryInputSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"query": {"type": "string"}},
	"required": ["query"]
}`)

func parseQuery(input json.RawMessage) string {
	var q queryInput
	if err := json.Unmarshal(input, &q); err != nil {
		return ""
	}
	return q.Query
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
