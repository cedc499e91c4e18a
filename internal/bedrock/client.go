package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the Bedrock runtime REST surface. Endpoint is derived from
// the credential region unless overridden (tests point it at a local server).
type Client struct {
	creds      *Credentials
	httpClient *http.Client
	endpoint   string
}

type ClientOption func(*Client)

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = strings.TrimRight(endpoint, "/") }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(creds *Credentials, opts ...ClientOption) *Client {
	c := &Client{
		creds:      creds,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		endpoint:   fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", creds.Region()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Message and content shapes mirror the Bedrock Converse API JSON. []byte
// fields marshal as base64, which is what the API expects for media bytes.

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Text             string            `json:"text,omitempty"`
	Image            *MediaBlock       `json:"image,omitempty"`
	Video            *MediaBlock       `json:"video,omitempty"`
	CitationsContent *CitationsContent `json:"citationsContent,omitempty"`
}

type MediaBlock struct {
	Format string      `json:"format"`
	Source MediaSource `json:"source"`
}

type MediaSource struct {
	Bytes []byte `json:"bytes"`
}

type CitationsContent struct {
	Citations []Citation `json:"citations"`
}

type Citation struct {
	Location CitationLocation `json:"location"`
}

type CitationLocation struct {
	Web CitationWeb `json:"web"`
}

type CitationWeb struct {
	URL string `json:"url"`
}

type InferenceConfig struct {
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

type ToolConfig struct {
	Tools []ToolEntry `json:"tools"`
}

type ToolEntry struct {
	SystemTool *SystemTool `json:"systemTool,omitempty"`
}

type SystemTool struct {
	Name string `json:"name"`
}

type ConverseRequest struct {
	Messages        []Message        `json:"messages"`
	InferenceConfig *InferenceConfig `json:"inferenceConfig,omitempty"`
	ToolConfig      *ToolConfig      `json:"toolConfig,omitempty"`
}

type ConverseResponse struct {
	Output struct {
		Message Message `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
}

// OutputText joins all text parts of the response message. Some model
// integrations interleave citation entries between text entries.
func (r *ConverseResponse) OutputText() string {
	var b strings.Builder
	for _, block := range r.Output.Message.Content {
		b.WriteString(block.Text)
	}
	return strings.TrimSpace(b.String())
}

// CitationURLs collects distinct web citation URLs, capped at limit.
func (r *ConverseResponse) CitationURLs(limit int) []string {
	if limit <= 0 {
		return nil
	}
	var urls []string
	seen := make(map[string]struct{})
	for _, block := range r.Output.Message.Content {
		if block.CitationsContent == nil {
			continue
		}
		for _, c := range block.CitationsContent.Citations {
			u := c.Location.Web.URL
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
			if len(urls) >= limit {
				return urls
			}
		}
	}
	return urls
}

// F64 is a convenience for optional float fields (temperature 0 is a real
// value, not an absent one).
func F64(v float64) *float64 { return &v }

// Converse sends a single-shot completion request to modelID.
func (c *Client) Converse(ctx context.Context, modelID string, req ConverseRequest) (*ConverseResponse, error) {
	var out ConverseResponse
	if err := c.post(ctx, "/model/"+url.PathEscape(modelID)+"/converse", req, &out); err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return &out, nil
}

type embedRequest struct {
	InputText string `json:"inputText"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedText returns the Titan text embedding vector for text.
func (c *Client) EmbedText(ctx context.Context, modelID, text string) ([]float64, error) {
	var out embedResponse
	if err := c.post(ctx, "/model/"+url.PathEscape(modelID)+"/invoke", embedRequest{InputText: text}, &out); err != nil {
		return nil, fmt.Errorf("bedrock embed: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock embed: empty embedding in response")
	}
	return out.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.creds.SignRequest(ctx, req, body); err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
