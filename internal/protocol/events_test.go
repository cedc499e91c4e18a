package protocol

import (
	"encoding/json"
	"testing"
)

func marshal(t *testing.T, env Envelope) string {
	t.Helper()
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return string(data)
}

func TestChatInitShape(t *testing.T) {
	got := marshal(t, ChatInitEvent("abc123"))
	want := `{"event":{"chatInit":{"chatId":"abc123"}}}`
	if got != want {
		t.Fatalf("chatInit = %s, want %s", got, want)
	}
}

func TestUserTranscriptShape(t *testing.T) {
	got := marshal(t, UserTranscriptEvent("hello there"))
	want := `{"event":{"userTranscript":"hello there"}}`
	if got != want {
		t.Fatalf("userTranscript = %s, want %s", got, want)
	}
}

func TestTextOutputShape(t *testing.T) {
	got := marshal(t, TextOutputEvent("partial answer", false))
	want := `{"event":{"textOutput":{"content":"partial answer","isFinal":false}}}`
	if got != want {
		t.Fatalf("textOutput = %s, want %s", got, want)
	}

	got = marshal(t, TextOutputEvent("full answer", true))
	want = `{"event":{"textOutput":{"content":"full answer","isFinal":true}}}`
	if got != want {
		t.Fatalf("textOutput final = %s, want %s", got, want)
	}
}

func TestAssistantFinalShape(t *testing.T) {
	got := marshal(t, AssistantFinalEvent())
	want := `{"event":{"assistantFinal":true}}`
	if got != want {
		t.Fatalf("assistantFinal = %s, want %s", got, want)
	}
}

func TestToolEventShape(t *testing.T) {
	got := marshal(t, ToolStartedEvent("web_search"))
	want := `{"event":{"toolEvent":{"name":"web_search","status":"started"}}}`
	if got != want {
		t.Fatalf("toolEvent = %s, want %s", got, want)
	}
}
