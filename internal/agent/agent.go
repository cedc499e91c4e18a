// Package agent runs the upstream bidirectional speech model for one chat.
// An Agent is created per websocket connection, streams caller audio up and
// emits transcript, audio and tool events back on a single channel.
package agent

import (
	"context"

	"github.com/mrosst/voicerag/internal/params"
)

// Roles attached to transcript fragments.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptFragment is one piece of recognized or generated speech. Text
// may be cumulative or incremental depending on the upstream stream state;
// consumers are expected to reconcile. An empty-text final fragment closes
// the current utterance.
type TranscriptFragment struct {
	Role    string
	Text    string
	IsFinal bool
}

// AudioFragment carries one chunk of synthesized speech, base64 PCM.
type AudioFragment struct {
	AudioBase64 string
}

// ToolStarted signals that the model began executing a named tool.
type ToolStarted struct {
	Name string
}

// AudioInput is one chunk of caller audio forwarded upstream.
type AudioInput struct {
	AudioBase64 string
	Format      string
	SampleRate  int
	Channels    int
}

// Agent is a live conversation with the speech model. Receive yields
// TranscriptFragment, AudioFragment and ToolStarted values; the channel is
// closed when the upstream stream ends or Stop is called.
type Agent interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SendAudio(ctx context.Context, in AudioInput) error
	SendText(ctx context.Context, text string) error
	Receive() <-chan any
}

// Factory mints an Agent for a freshly accepted connection.
type Factory interface {
	NewAgent(chatID string, p params.ConnectionParams) (Agent, error)
}
