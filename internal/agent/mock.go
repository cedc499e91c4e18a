package agent

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/mrosst/voicerag/internal/params"
)

// MockAgent is a local fallback used when no model credentials are
// configured, and the workhorse of the bridge tests. It acknowledges every
// few audio chunks with a canned exchange and echoes typed text back.
type MockAgent struct {
	mu        sync.Mutex
	events    chan any
	started   bool
	closed    bool
	chunks    int
	sentText  []string
	stopCalls int
}

func NewMockAgent() *MockAgent {
	return &MockAgent{events: make(chan any, 128)}
}

func (m *MockAgent) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *MockAgent) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

func (m *MockAgent) SendAudio(_ context.Context, in AudioInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.chunks++
	if m.chunks%8 == 0 && in.AudioBase64 != "" {
		m.events <- TranscriptFragment{Role: RoleUser, Text: "simulated voice input"}
		reply := "This is a simulated reply."
		m.events <- TranscriptFragment{Role: RoleAssistant, Text: reply}
		m.events <- TranscriptFragment{Role: RoleAssistant, IsFinal: true}
		m.events <- AudioFragment{AudioBase64: base64.StdEncoding.EncodeToString([]byte(reply))}
	}
	return nil
}

func (m *MockAgent) SendText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentText = append(m.sentText, text)
	if m.closed || strings.TrimSpace(text) == "" {
		return nil
	}
	m.events <- TranscriptFragment{Role: RoleAssistant, Text: "You said: " + text}
	m.events <- TranscriptFragment{Role: RoleAssistant, IsFinal: true}
	return nil
}

func (m *MockAgent) Receive() <-chan any { return m.events }

// Emit pushes an arbitrary event, letting tests script upstream behavior.
func (m *MockAgent) Emit(ev any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- ev
}

// Started reports whether Start has been called.
func (m *MockAgent) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// StopCalls returns how many times Stop has been invoked.
func (m *MockAgent) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// SentText returns the typed messages forwarded so far.
func (m *MockAgent) SentText() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sentText...)
}

// AudioChunks returns how many audio chunks were forwarded.
func (m *MockAgent) AudioChunks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks
}

// MockFactory hands out pre-built agents in order, or fresh MockAgents when
// none were queued.
type MockFactory struct {
	mu     sync.Mutex
	queued []Agent
	minted []string
}

func (f *MockFactory) Queue(a Agent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, a)
}

func (f *MockFactory) NewAgent(chatID string, _ params.ConnectionParams) (Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minted = append(f.minted, chatID)
	if len(f.queued) > 0 {
		a := f.queued[0]
		f.queued = f.queued[1:]
		return a, nil
	}
	return NewMockAgent(), nil
}

// MintedChats returns the chat IDs agents were created for.
func (f *MockFactory) MintedChats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.minted...)
}

var (
	_ Agent   = (*NovaAgent)(nil)
	_ Agent   = (*MockAgent)(nil)
	_ Factory = (*NovaFactory)(nil)
	_ Factory = (*MockFactory)(nil)
)
