// Package bridge pumps one websocket client against one upstream agent:
// caller audio and text flow up, transcript, audio and tool events flow
// back down as protocol envelopes and binary frames.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrosst/voicerag/internal/agent"
	"github.com/mrosst/voicerag/internal/observability"
	"github.com/mrosst/voicerag/internal/params"
	"github.com/mrosst/voicerag/internal/protocol"
	"github.com/mrosst/voicerag/internal/session"
	"github.com/mrosst/voicerag/internal/transcript"
)

const defaultDrainTimeout = 3 * time.Second

// Conn is the client-side transport. Satisfied by *websocket.Conn; tests
// substitute an in-memory pipe.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Config wires one bridge. OnClose runs exactly once after the session is
// deregistered, for per-chat cleanup such as dropping ingested knowledge.
type Config struct {
	ChatID       string
	Conn         Conn
	Agent        agent.Agent
	Params       params.ConnectionParams
	Registry     *session.Registry
	Metrics      *observability.Metrics
	OnClose      func(chatID string)
	DrainTimeout time.Duration
}

// Bridge owns the lifecycle of one voice connection.
type Bridge struct {
	cfg Config

	writeMu  sync.Mutex
	stopOnce sync.Once
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

func New(cfg Config) *Bridge {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	return &Bridge{cfg: cfg, pumpDone: make(chan struct{})}
}

// Run drives the connection to completion: it registers the session, greets
// the client with chatInit, starts the agent and then relays in both
// directions until the client disconnects or ctx is canceled. Cleanup is
// complete by the time Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	if _, err := b.cfg.Registry.Add(b.cfg.ChatID, b.cfg.Agent); err != nil {
		return fmt.Errorf("register session %s: %w", b.cfg.ChatID, err)
	}
	b.cfg.Metrics.ActiveSessions.Inc()
	b.cfg.Metrics.SessionEvents.WithLabelValues("connected").Inc()

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	if err := b.writeEnvelope(protocol.ChatInitEvent(b.cfg.ChatID)); err != nil {
		close(b.pumpDone)
		b.Stop(context.Background())
		return fmt.Errorf("send chatInit: %w", err)
	}
	if err := b.cfg.Agent.Start(ctx); err != nil {
		close(b.pumpDone)
		b.Stop(context.Background())
		return fmt.Errorf("start agent: %w", err)
	}

	go b.pump(ctx)
	b.readClient(ctx)
	b.Stop(context.Background())
	return nil
}

// readClient relays inbound frames until the connection drops. Binary
// frames are caller audio, text frames are typed messages forwarded to the
// agent verbatim. Other frame types are ignored.
func (b *Bridge) readClient(ctx context.Context) {
	for {
		messageType, data, err := b.cfg.Conn.ReadMessage()
		if err != nil {
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			b.cfg.Metrics.WSMessages.WithLabelValues("in", "binary").Inc()
			err = b.cfg.Agent.SendAudio(ctx, agent.AudioInput{
				AudioBase64: base64.StdEncoding.EncodeToString(data),
				Format:      b.cfg.Params.Format,
				SampleRate:  b.cfg.Params.InputRate,
				Channels:    b.cfg.Params.Channels,
			})
		case websocket.TextMessage:
			b.cfg.Metrics.WSMessages.WithLabelValues("in", "text").Inc()
			err = b.cfg.Agent.SendText(ctx, string(data))
		}
		if err != nil {
			log.Printf("bridge %s: forward to agent: %v", b.cfg.ChatID, err)
			return
		}
	}
}

// pump relays agent events to the client until the agent channel closes or
// ctx is canceled.
func (b *Bridge) pump(ctx context.Context) {
	defer close(b.pumpDone)

	start := time.Now()
	firstAudio := false
	var acc transcript.Accumulator

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.cfg.Agent.Receive():
			if !ok {
				return
			}
			if err := b.relay(ev, &acc, start, &firstAudio); err != nil {
				log.Printf("bridge %s: write to client: %v", b.cfg.ChatID, err)
				return
			}
		}
	}
}

func (b *Bridge) relay(ev any, acc *transcript.Accumulator, start time.Time, firstAudio *bool) error {
	switch e := ev.(type) {
	case agent.TranscriptFragment:
		res := acc.Observe(e.Role, e.Text, e.IsFinal)
		if e.Role != transcript.RoleAssistant {
			if res.Display == "" {
				return nil
			}
			return b.writeEnvelope(protocol.UserTranscriptEvent(res.Display))
		}
		if res.Finalized {
			if res.Display != "" {
				if err := b.writeEnvelope(protocol.TextOutputEvent(res.Display, true)); err != nil {
					return err
				}
			}
			return b.writeEnvelope(protocol.AssistantFinalEvent())
		}
		if res.Display == "" {
			return nil
		}
		return b.writeEnvelope(protocol.TextOutputEvent(res.Display, false))

	case agent.AudioFragment:
		pcm, err := base64.StdEncoding.DecodeString(e.AudioBase64)
		if err != nil {
			log.Printf("bridge %s: bad audio payload: %v", b.cfg.ChatID, err)
			return nil
		}
		if !*firstAudio {
			*firstAudio = true
			b.cfg.Metrics.ObserveFirstAudioLatency(time.Since(start))
		}
		b.cfg.Metrics.WSMessages.WithLabelValues("out", "binary").Inc()
		b.writeMu.Lock()
		defer b.writeMu.Unlock()
		return b.cfg.Conn.WriteMessage(websocket.BinaryMessage, pcm)

	case agent.ToolStarted:
		b.cfg.Metrics.ToolInvocations.WithLabelValues(e.Name, "started").Inc()
		return b.writeEnvelope(protocol.ToolStartedEvent(e.Name))
	}
	// Unknown agent events are dropped.
	return nil
}

// Stop tears the bridge down: cancel the pump, wait briefly for it to
// drain, stop the agent, deregister and run the close hook. Idempotent.
func (b *Bridge) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		select {
		case <-b.pumpDone:
		case <-time.After(b.cfg.DrainTimeout):
			log.Printf("bridge %s: pump did not drain in %s", b.cfg.ChatID, b.cfg.DrainTimeout)
		}

		if err := b.cfg.Agent.Stop(ctx); err != nil {
			log.Printf("bridge %s: stop agent: %v", b.cfg.ChatID, err)
		}
		if _, err := b.cfg.Registry.Remove(b.cfg.ChatID); err == nil {
			b.cfg.Metrics.ActiveSessions.Dec()
			b.cfg.Metrics.SessionEvents.WithLabelValues("closed").Inc()
		}
		if b.cfg.OnClose != nil {
			b.cfg.OnClose(b.cfg.ChatID)
		}
		_ = b.cfg.Conn.Close()
	})
}

func (b *Bridge) writeEnvelope(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	b.cfg.Metrics.WSMessages.WithLabelValues("out", "text").Inc()
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.cfg.Conn.WriteMessage(websocket.TextMessage, data)
}
