package tools

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mrosst/voicerag/internal/bedrock"
	"github.com/mrosst/voicerag/internal/session"
)

const (
	noImageUploaded = "No image uploaded in this chat. Ask the user to upload one first."
	noVideoUploaded = "No video uploaded in this chat. Ask the user to upload one first."
)

// NewImageReader builds a tool that reads text or answers questions about
// the most recently uploaded image in the chat.
func NewImageReader(reg *session.Registry, client *bedrock.Client, modelID, chatID string) Tool {
	return Tool{
		Name: "analyze_image",
		Description: "Analyze the most recently uploaded image: read any text in it or " +
			"answer a question about its contents.",
		InputSchema: queryInputSchema,
		Run: func(ctx context.Context, input json.RawMessage) string {
			att, err := reg.LatestAttachment(chatID, session.MediaImage)
			if err != nil {
				return noImageUploaded
			}
			query := parseQuery(input)
			if query == "" {
				query = "Describe this image, including any visible text."
			}
			res, err := client.Converse(ctx, modelID, bedrock.ConverseRequest{
				Messages: []bedrock.Message{{
					Role: "user",
					Content: []bedrock.ContentBlock{
						{Image: &bedrock.MediaBlock{
							Format: formatFromContentType(att.ContentType),
							Source: bedrock.MediaSource{Bytes: att.Data},
						}},
						{Text: query},
					},
				}},
				InferenceConfig: &bedrock.InferenceConfig{MaxTokens: 300},
			})
			if err != nil {
				log.Printf("tools: image analysis failed: %v", err)
				return "Image analysis failed. Please try again."
			}
			return res.OutputText()
		},
	}
}

// NewVideoSummarizer builds a tool that summarizes the most recently
// uploaded video in the chat.
func NewVideoSummarizer(reg *session.Registry, client *bedrock.Client, modelID, chatID string) Tool {
	return Tool{
		Name:        "summarize_video",
		Description: "Summarize the most recently uploaded video or answer a question about it.",
		InputSchema: queryInputSchema,
		Run: func(ctx context.Context, input json.RawMessage) string {
			att, err := reg.LatestAttachment(chatID, session.MediaVideo)
			if err != nil {
				return noVideoUploaded
			}
			query := parseQuery(input)
			if query == "" {
				query = "Summarize this video in a few sentences."
			}
			res, err := client.Converse(ctx, modelID, bedrock.ConverseRequest{
				Messages: []bedrock.Message{{
					Role: "user",
					Content: []bedrock.ContentBlock{
						{Video: &bedrock.MediaBlock{
							Format: formatFromContentType(att.ContentType),
							Source: bedrock.MediaSource{Bytes: att.Data},
						}},
						{Text: query},
					},
				}},
				InferenceConfig: &bedrock.InferenceConfig{MaxTokens: 300},
			})
			if err != nil {
				log.Printf("tools: video summarization failed: %v", err)
				return "Video analysis failed. Please try again."
			}
			return res.OutputText()
		},
	}
}

// formatFromContentType maps a MIME type to the short format token the
// model API expects, e.g. "image/jpeg" -> "jpeg".
func formatFromContentType(contentType string) string {
	_, sub, ok := strings.Cut(strings.ToLower(contentType), "/")
	if !ok {
		return contentType
	}
	if i := strings.IndexAny(sub, ";+"); i >= 0 {
		sub = sub[:i]
	}
	if sub == "jpg" {
		return "jpeg"
	}
	return strings.TrimSpace(sub)
}
