// Package protocol defines the JSON control messages sent to websocket
// clients. Every control message is wrapped in an {"event": ...} envelope;
// audio travels separately as binary frames.
package protocol

// Envelope wraps a single control event for the wire.
type Envelope struct {
	Event Event `json:"event"`
}

// Event is the union of outbound control payloads. Exactly one field is set.
type Event struct {
	ChatInit       *ChatInit   `json:"chatInit,omitempty"`
	UserTranscript string      `json:"userTranscript,omitempty"`
	TextOutput     *TextOutput `json:"textOutput,omitempty"`
	AssistantFinal bool        `json:"assistantFinal,omitempty"`
	ToolEvent      *ToolEvent  `json:"toolEvent,omitempty"`
}

// ChatInit is the first message on every connection; it carries the chat id
// clients use to scope subsequent HTTP calls.
type ChatInit struct {
	ChatID string `json:"chatId"`
}

// TextOutput carries the running assistant transcript.
type TextOutput struct {
	Content string `json:"content"`
	IsFinal bool   `json:"isFinal"`
}

// ToolEvent signals tool activity so clients can render an indicator.
type ToolEvent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func ChatInitEvent(chatID string) Envelope {
	return Envelope{Event: Event{ChatInit: &ChatInit{ChatID: chatID}}}
}

func UserTranscriptEvent(text string) Envelope {
	return Envelope{Event: Event{UserTranscript: text}}
}

func TextOutputEvent(content string, isFinal bool) Envelope {
	return Envelope{Event: Event{TextOutput: &TextOutput{Content: content, IsFinal: isFinal}}}
}

func AssistantFinalEvent() Envelope {
	return Envelope{Event: Event{AssistantFinal: true}}
}

func ToolStartedEvent(name string) Envelope {
	return Envelope{Event: Event{ToolEvent: &ToolEvent{Name: name, Status: "started"}}}
}
