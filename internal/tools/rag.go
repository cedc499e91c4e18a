package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mrosst/voicerag/internal/bedrock"
	"github.com/mrosst/voicerag/internal/knowledge"
)

// NewDocumentSearch builds the per-chat document search tool. Retrieved
// context is synthesized into a short spoken answer with Nova Lite; if
// synthesis fails the raw context is returned instead of an error.
func NewDocumentSearch(kb *knowledge.Service, client *bedrock.Client, modelID, chatID string) Tool {
	return Tool{
		Name: "search_documents",
		Description: "MANDATORY tool to use when the user asks about uploaded files, PDFs, " +
			"'this document', or any specific info. You DO have access to files through this tool.",
		InputSchema: queryInputSchema,
		Run: func(ctx context.Context, input json.RawMessage) string {
			query := parseQuery(input)
			docContext := kb.Retrieve(ctx, chatID, query)
			if strings.Contains(docContext, "No relevant information") {
				return docContext
			}

			res, err := client.Converse(ctx, modelID, bedrock.ConverseRequest{
				Messages: []bedrock.Message{{
					Role:    "user",
					Content: []bedrock.ContentBlock{{Text: ragSynthesisPrompt(docContext, query)}},
				}},
				InferenceConfig: &bedrock.InferenceConfig{MaxTokens: 200, Temperature: bedrock.F64(0)},
			})
			if err != nil {
				log.Printf("tools: document search synthesis failed: %v", err)
				return truncate(docContext, 500)
			}
			answer := res.OutputText()
			if answer == "" {
				return truncate(docContext, 500)
			}
			log.Printf("tools: document search answer: %s", answer)
			return answer
		},
	}
}

func ragSynthesisPrompt(docContext, query string) string {
	return fmt.Sprintf(`You are a professional assistant. Based on the provided DOCUMENT CONTEXT, answer the USER QUERY.

DOCUMENT CONTEXT:
%s

USER QUERY:
%s

INSTRUCTIONS:
- Be extremely concise (1-2 sentences).
- Use a natural, conversational tone for voice.
- Only use info from the context. If not found, say you don't know and offer to search the web.
- If the context contains details about a specific document, mention the filename.
`, docContext, query)
}
