// Package httpapi exposes the gateway surface: the voice websocket plus the
// chat-scoped media and knowledge endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mrosst/voicerag/internal/agent"
	"github.com/mrosst/voicerag/internal/bridge"
	"github.com/mrosst/voicerag/internal/config"
	"github.com/mrosst/voicerag/internal/knowledge"
	"github.com/mrosst/voicerag/internal/observability"
	"github.com/mrosst/voicerag/internal/params"
	"github.com/mrosst/voicerag/internal/session"
)

type Server struct {
	cfg       config.Config
	registry  *session.Registry
	factory   agent.Factory
	knowledge *knowledge.Service
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, registry *session.Registry, factory agent.Factory, kb *knowledge.Service, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		factory:   factory,
		knowledge: kb,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot drive a mic session
				// if the gateway is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws", s.handleVoiceWS)

	r.Post("/api/media/upload", s.handleMediaUpload)
	r.Get("/api/media/list", s.handleMediaList)
	r.Post("/api/media/clear", s.handleMediaClear)

	r.Post("/api/knowledge/ingest", s.handleKnowledgeIngest)
	r.Get("/api/knowledge/list", s.handleKnowledgeList)
	r.Post("/api/knowledge/reset", s.handleKnowledgeReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.registry.Count(),
	})
}

// handleVoiceWS negotiates connection parameters from the query string,
// mints a chat id, upgrades and hands the socket to a bridge. The handler
// returns when the conversation ends.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	p := params.Resolve(r.URL.Query(), params.Defaults{
		Voice:      s.cfg.DefaultVoice,
		InputRate:  s.cfg.InputSampleRate,
		OutputRate: s.cfg.OutputSampleRate,
		Channels:   s.cfg.Channels,
	})
	chatID := newChatID()

	ag, err := s.factory.NewAgent(chatID, p)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "agent_unavailable", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	br := bridge.New(bridge.Config{
		ChatID:   chatID,
		Conn:     conn,
		Agent:    ag,
		Params:   p,
		Registry: s.registry,
		Metrics:  s.metrics,
		OnClose: func(id string) {
			if err := s.knowledge.Reset(context.Background(), id); err != nil {
				log.Printf("httpapi: reset knowledge for %s: %v", id, err)
			}
		},
	})
	if err := br.Run(r.Context()); err != nil {
		log.Printf("httpapi: voice connection %s: %v", chatID, err)
	}
}

// chatSession resolves the chat_id query parameter against the registry,
// writing the 404 itself when the chat is gone.
func (s *Server) chatSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	chatID := strings.TrimSpace(r.URL.Query().Get("chat_id"))
	if chatID == "" || !s.registry.Exists(chatID) {
		respondError(w, http.StatusNotFound, "unknown_chat", "Unknown or expired chat_id")
		return "", false
	}
	return chatID, true
}

func newChatID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
