package tools

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"

	"github.com/mrosst/voicerag/internal/bedrock"
)

const (
	webSearchUnavailable = "Web search is temporarily unavailable. Please try again later."
	webSearchFailed      = "Web search failed. Please try again."
)

// NewWebSearch builds the live web search tool, backed by the grounded
// model's built-in retrieval. The answer is suffixed with the source
// domains so the agent can cite where the information came from.
func NewWebSearch(client *bedrock.Client, modelID string, maxSources int) Tool {
	return Tool{
		Name: "web_search",
		Description: "Search the live web for current information: news, weather, prices, " +
			"sports scores, or anything after your knowledge cutoff.",
		InputSchema: queryInputSchema,
		Run: func(ctx context.Context, input json.RawMessage) string {
			query := parseQuery(input)
			res, err := client.Converse(ctx, modelID, bedrock.ConverseRequest{
				Messages: []bedrock.Message{{
					Role:    "user",
					Content: []bedrock.ContentBlock{{Text: query}},
				}},
				InferenceConfig: &bedrock.InferenceConfig{MaxTokens: 512},
				ToolConfig: &bedrock.ToolConfig{
					Tools: []bedrock.ToolEntry{{SystemTool: &bedrock.SystemTool{Name: "nova_grounding"}}},
				},
			})
			if err != nil {
				log.Printf("tools: web search failed: %v", err)
				return webSearchUnavailable
			}
			answer := res.OutputText()
			if answer == "" {
				return webSearchFailed
			}
			if domains := urlsToDomains(res.CitationURLs(maxSources)); len(domains) > 0 {
				answer += " Sources: " + strings.Join(domains, ", ")
			}
			return answer
		},
	}
}

// urlsToDomains reduces citation URLs to deduplicated hostnames,
// preserving order. Unparseable entries are dropped.
func urlsToDomains(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var domains []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.TrimPrefix(u.Hostname(), "www.")
		if seen[host] {
			continue
		}
		seen[host] = true
		domains = append(domains, host)
	}
	return domains
}
