package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mrosst/voicerag/internal/bedrock"
	"github.com/mrosst/voicerag/internal/params"
	"github.com/mrosst/voicerag/internal/tools"
)

// NovaConfig configures the upstream Nova Sonic stream for one chat.
type NovaConfig struct {
	Credentials *bedrock.Credentials
	ModelID     string
	// Endpoint overrides the derived wss:// bedrock-runtime endpoint.
	// Tests point it at a local server.
	Endpoint string
	Tools    []tools.Tool
}

// NovaAgent speaks the bidirectional streaming protocol of the Nova Sonic
// speech model over a signed websocket. One agent serves one chat.
type NovaAgent struct {
	cfg    NovaConfig
	params params.ConnectionParams
	tools  map[string]tools.Tool

	conn     *websocket.Conn
	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
	toolWG   sync.WaitGroup
	events   chan any

	promptID       string
	audioContentID string
}

// NewNovaAgent builds an agent; no connection is made until Start.
func NewNovaAgent(cfg NovaConfig, p params.ConnectionParams) *NovaAgent {
	byName := make(map[string]tools.Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		byName[t.Name] = t
	}
	return &NovaAgent{
		cfg:            cfg,
		params:         p,
		tools:          byName,
		done:           make(chan struct{}),
		events:         make(chan any, 256),
		promptID:       uuid.NewString(),
		audioContentID: uuid.NewString(),
	}
}

func (a *NovaAgent) Receive() <-chan any { return a.events }

// Start dials the model stream, sends the session preamble and begins
// reading server events.
func (a *NovaAgent) Start(ctx context.Context) error {
	base := strings.TrimRight(a.cfg.Endpoint, "/")
	if base == "" {
		base = fmt.Sprintf("wss://bedrock-runtime.%s.amazonaws.com", a.cfg.Credentials.Region())
	}
	target := base + "/model/" + url.PathEscape(a.cfg.ModelID) + "/invoke-with-bidirectional-stream"

	headers, err := a.signedHeaders(ctx, target)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, headers)
	if err != nil {
		return fmt.Errorf("dial model stream: %w", err)
	}
	a.conn = conn

	if err := a.sendPreamble(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("start model session: %w", err)
	}
	go a.readLoop()
	return nil
}

// signedHeaders authorizes the upgrade request with the same material used
// for the REST surface. The signature is computed over the https form of
// the target URL.
func (a *NovaAgent) signedHeaders(ctx context.Context, target string) (http.Header, error) {
	httpURL := strings.Replace(target, "ws", "http", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Credentials.SignRequest(ctx, req, nil); err != nil {
		return nil, err
	}
	return req.Header, nil
}

func (a *NovaAgent) sendPreamble() error {
	inf := a.params.Inference
	if err := a.writeEvent("sessionStart", map[string]any{
		"inferenceConfiguration": map[string]any{
			"maxTokens":   inf.MaxTokens,
			"temperature": inf.Temperature,
			"topP":        inf.TopP,
		},
	}); err != nil {
		return err
	}

	promptStart := map[string]any{
		"promptName": a.promptID,
		"audioOutputConfiguration": map[string]any{
			"mediaType":       "audio/lpcm",
			"sampleRateHertz": a.params.OutputRate,
			"sampleSizeBits":  16,
			"channelCount":    a.params.Channels,
			"voiceId":         a.params.Voice,
			"encoding":        "base64",
			"audioType":       "SPEECH",
		},
	}
	if len(a.tools) > 0 {
		promptStart["toolConfiguration"] = a.toolConfiguration()
	}
	if err := a.writeEvent("promptStart", promptStart); err != nil {
		return err
	}

	if err := a.sendTextContent("SYSTEM", false, systemPrompt(a.params, time.Now())); err != nil {
		return err
	}

	return a.writeEvent("contentStart", map[string]any{
		"promptName":  a.promptID,
		"contentName": a.audioContentID,
		"type":        "AUDIO",
		"interactive": true,
		"role":        "USER",
		"audioInputConfiguration": map[string]any{
			"mediaType":              "audio/lpcm",
			"sampleRateHertz":        a.params.InputRate,
			"sampleSizeBits":         16,
			"channelCount":           a.params.Channels,
			"audioType":              "SPEECH",
			"encoding":               "base64",
			"endpointingSensitivity": a.params.Endpointing,
		},
	})
}

func (a *NovaAgent) toolConfiguration() map[string]any {
	specs := make([]map[string]any, 0, len(a.tools))
	for _, t := range a.cfg.Tools {
		specs = append(specs, map[string]any{
			"toolSpec": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"inputSchema": map[string]any{"json": string(t.InputSchema)},
			},
		})
	}
	return map[string]any{"tools": specs}
}

// SendAudio forwards one caller audio chunk into the open audio content.
func (a *NovaAgent) SendAudio(_ context.Context, in AudioInput) error {
	return a.writeEvent("audioInput", map[string]any{
		"promptName":  a.promptID,
		"contentName": a.audioContentID,
		"content":     in.AudioBase64,
	})
}

// SendText injects a typed user message as its own interactive text content.
func (a *NovaAgent) SendText(_ context.Context, text string) error {
	return a.sendTextContent("USER", true, text)
}

func (a *NovaAgent) sendTextContent(role string, interactive bool, text string) error {
	cid := uuid.NewString()
	if err := a.writeEvent("contentStart", map[string]any{
		"promptName":  a.promptID,
		"contentName": cid,
		"type":        "TEXT",
		"interactive": interactive,
		"role":        role,
		"textInputConfiguration": map[string]any{"mediaType": "text/plain"},
	}); err != nil {
		return err
	}
	if err := a.writeEvent("textInput", map[string]any{
		"promptName":  a.promptID,
		"contentName": cid,
		"content":     text,
	}); err != nil {
		return err
	}
	return a.writeEvent("contentEnd", map[string]any{
		"promptName":  a.promptID,
		"contentName": cid,
	})
}

// Stop winds down the upstream session. Safe to call more than once; the
// protocol farewell is best effort.
func (a *NovaAgent) Stop(_ context.Context) error {
	a.stopOnce.Do(func() {
		if a.conn != nil {
			_ = a.writeEvent("contentEnd", map[string]any{
				"promptName":  a.promptID,
				"contentName": a.audioContentID,
			})
			_ = a.writeEvent("promptEnd", map[string]any{"promptName": a.promptID})
			_ = a.writeEvent("sessionEnd", map[string]any{})
		}
		close(a.done)
		if a.conn != nil {
			_ = a.conn.Close()
		} else {
			close(a.events)
		}
	})
	return nil
}

func (a *NovaAgent) writeEvent(name string, payload any) error {
	if a.conn == nil {
		return fmt.Errorf("agent not started")
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteJSON(map[string]any{"event": map[string]any{name: payload}})
}

func (a *NovaAgent) emit(ev any) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

type novaServerEvent struct {
	Event struct {
		ContentStart *struct {
			ContentName string `json:"contentName"`
			Type        string `json:"type"`
			Role        string `json:"role"`
		} `json:"contentStart"`
		TextOutput *struct {
			ContentName string `json:"contentName"`
			Role        string `json:"role"`
			Content     string `json:"content"`
		} `json:"textOutput"`
		AudioOutput *struct {
			Content string `json:"content"`
		} `json:"audioOutput"`
		ToolUse *struct {
			ToolName  string          `json:"toolName"`
			ToolUseID string          `json:"toolUseId"`
			Content   json.RawMessage `json:"content"`
		} `json:"toolUse"`
		ContentEnd *struct {
			ContentName string `json:"contentName"`
			Type        string `json:"type"`
			StopReason  string `json:"stopReason"`
		} `json:"contentEnd"`
		CompletionEnd *struct{} `json:"completionEnd"`
	} `json:"event"`
}

// readLoop decodes server events until the connection drops, then waits for
// in-flight tools and closes the event channel.
func (a *NovaAgent) readLoop() {
	defer func() {
		a.stopOnce.Do(func() {
			close(a.done)
			_ = a.conn.Close()
		})
		a.toolWG.Wait()
		close(a.events)
	}()

	// text content name -> role, for finalizing on contentEnd
	roles := make(map[string]string)

	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev novaServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch e := ev.Event; {
		case e.ContentStart != nil:
			if e.ContentStart.Type == "TEXT" {
				roles[e.ContentStart.ContentName] = normalizeRole(e.ContentStart.Role)
			}
		case e.TextOutput != nil:
			role := normalizeRole(e.TextOutput.Role)
			if role == "" {
				role = roles[e.TextOutput.ContentName]
			}
			a.emit(TranscriptFragment{Role: role, Text: e.TextOutput.Content})
		case e.AudioOutput != nil:
			if e.AudioOutput.Content != "" {
				a.emit(AudioFragment{AudioBase64: e.AudioOutput.Content})
			}
		case e.ToolUse != nil:
			a.toolWG.Add(1)
			go a.runTool(e.ToolUse.ToolName, e.ToolUse.ToolUseID, toolInput(e.ToolUse.Content))
		case e.ContentEnd != nil:
			if e.ContentEnd.Type == "TEXT" && e.ContentEnd.StopReason == "END_TURN" {
				if role := roles[e.ContentEnd.ContentName]; role != "" {
					a.emit(TranscriptFragment{Role: role, IsFinal: true})
				}
				delete(roles, e.ContentEnd.ContentName)
			}
		case e.CompletionEnd != nil:
			return
		}
	}
}

func (a *NovaAgent) runTool(name, useID string, input json.RawMessage) {
	defer a.toolWG.Done()
	a.emit(ToolStarted{Name: name})

	result := "Tool not available."
	if t, ok := a.tools[name]; ok {
		result = t.Run(context.Background(), input)
	} else {
		log.Printf("agent: model requested unknown tool %q", name)
	}

	cid := uuid.NewString()
	for _, err := range []error{
		a.writeEvent("contentStart", map[string]any{
			"promptName":  a.promptID,
			"contentName": cid,
			"type":        "TOOL",
			"interactive": false,
			"role":        "TOOL",
			"toolResultInputConfiguration": map[string]any{
				"toolUseId": useID,
				"type":      "TEXT",
				"textInputConfiguration": map[string]any{"mediaType": "text/plain"},
			},
		}),
		a.writeEvent("toolResult", map[string]any{
			"promptName":  a.promptID,
			"contentName": cid,
			"content":     result,
		}),
		a.writeEvent("contentEnd", map[string]any{
			"promptName":  a.promptID,
			"contentName": cid,
		}),
	} {
		if err != nil {
			log.Printf("agent: send tool result for %q: %v", name, err)
			return
		}
	}
}

// toolInput unwraps tool arguments, which arrive either as an object or as
// a JSON-encoded string of one.
func toolInput(raw json.RawMessage) json.RawMessage {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return json.RawMessage(s)
		}
	}
	return raw
}

func normalizeRole(role string) string {
	switch strings.ToUpper(role) {
	case "USER":
		return RoleUser
	case "ASSISTANT":
		return RoleAssistant
	default:
		return ""
	}
}

// NovaFactory mints a NovaAgent per connection, building the per-chat tool
// set lazily so tools can close over the chat ID.
type NovaFactory struct {
	Credentials *bedrock.Credentials
	ModelID     string
	Endpoint    string
	ToolsFor    func(chatID string) []tools.Tool
}

func (f *NovaFactory) NewAgent(chatID string, p params.ConnectionParams) (Agent, error) {
	cfg := NovaConfig{
		Credentials: f.Credentials,
		ModelID:     f.ModelID,
		Endpoint:    f.Endpoint,
	}
	if f.ToolsFor != nil {
		cfg.Tools = f.ToolsFor(chatID)
	}
	return NewNovaAgent(cfg, p), nil
}
