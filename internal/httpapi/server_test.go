package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrosst/voicerag/internal/agent"
	"github.com/mrosst/voicerag/internal/config"
	"github.com/mrosst/voicerag/internal/knowledge"
	"github.com/mrosst/voicerag/internal/observability"
	"github.com/mrosst/voicerag/internal/session"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, 4)
	for i, r := range text {
		v[i%4] += float64(r)
	}
	return v, nil
}

type testServer struct {
	ts      *httptest.Server
	reg     *session.Registry
	factory *agent.MockFactory
	kb      *knowledge.Service
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	if cfg.UploadMaxBytes == 0 {
		cfg.UploadMaxBytes = 25 << 20
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "matthew"
		cfg.InputSampleRate = 16000
		cfg.OutputSampleRate = 24000
		cfg.Channels = 1
	}
	cfg.AllowAnyOrigin = true

	env := &testServer{
		reg:     session.NewRegistry(),
		factory: &agent.MockFactory{},
		kb:      knowledge.NewService(knowledge.NewMemoryStore(), stubEmbedder{}, knowledge.ServiceConfig{}),
	}
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	srv := New(cfg, env.reg, env.factory, env.kb, metrics)
	env.ts = httptest.NewServer(srv.Router())
	t.Cleanup(env.ts.Close)
	return env
}

// addChat registers a live chat the scoped endpoints can target.
func (e *testServer) addChat(t *testing.T, chatID string) {
	t.Helper()
	if _, err := e.reg.Add(chatID, agent.NewMockAgent()); err != nil {
		t.Fatalf("Add(%q) error = %v", chatID, err)
	}
}

// multipartBody builds a single-file upload body with an explicit part
// content type.
func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, baseURL, chatID, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	body, bodyType := multipartBody(t, filename, contentType, data)
	res, err := http.Post(baseURL+"/api/media/upload?chat_id="+chatID, bodyType, body)
	if err != nil {
		t.Fatalf("upload request error = %v", err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestMediaUploadLifecycle(t *testing.T) {
	env := newTestServer(t, config.Config{})
	env.addChat(t, "chat-1")

	res := postUpload(t, env.ts.URL, "chat-1", "notes.txt", "text/plain", []byte("hello docs"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	uploaded := decodeBody(t, res)
	if uploaded["kind"] != "document" || uploaded["size"].(float64) != 10 {
		t.Fatalf("upload response = %+v", uploaded)
	}

	listRes, err := http.Get(env.ts.URL + "/api/media/list?chat_id=chat-1")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	listed := decodeBody(t, listRes)
	files := listed["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("files = %v, want 1 entry", files)
	}
	first := files[0].(map[string]any)
	if first["filename"] != "notes.txt" || first["created_at"] == nil {
		t.Errorf("file entry = %+v", first)
	}

	// Text uploads land in the knowledge base too.
	docs, err := env.kb.ListDocuments(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "notes.txt" {
		t.Errorf("knowledge docs = %+v", docs)
	}

	clearRes, err := http.Post(env.ts.URL+"/api/media/clear?chat_id=chat-1", "application/json", nil)
	if err != nil {
		t.Fatalf("clear request error = %v", err)
	}
	clearRes.Body.Close()
	if clearRes.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", clearRes.StatusCode)
	}

	listRes, err = http.Get(env.ts.URL + "/api/media/list?chat_id=chat-1")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	if listed = decodeBody(t, listRes); len(listed["files"].([]any)) != 0 {
		t.Errorf("files after clear = %v, want none", listed["files"])
	}
}

func TestMediaUploadUnknownChat(t *testing.T) {
	env := newTestServer(t, config.Config{})

	res := postUpload(t, env.ts.URL, "nope", "x.txt", "text/plain", []byte("x"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	body := decodeBody(t, res)
	if body["error"] != "Unknown or expired chat_id" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestMediaUploadUnsupportedType(t *testing.T) {
	env := newTestServer(t, config.Config{})
	env.addChat(t, "chat-1")

	res := postUpload(t, env.ts.URL, "chat-1", "x.zip", "application/zip", []byte("PK"))
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestMediaUploadSizeLimit(t *testing.T) {
	env := newTestServer(t, config.Config{UploadMaxBytes: 64})
	env.addChat(t, "chat-1")

	// A payload at exactly the cap is accepted.
	res := postUpload(t, env.ts.URL, "chat-1", "max.png", "image/png", bytes.Repeat([]byte{1}, 64))
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("exact-cap upload status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res = postUpload(t, env.ts.URL, "chat-1", "big.png", "image/png", bytes.Repeat([]byte{1}, 65))
	res.Body.Close()
	if res.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize upload status = %d, want %d", res.StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestKnowledgeEndpoints(t *testing.T) {
	env := newTestServer(t, config.Config{})
	env.addChat(t, "chat-k")

	body, _ := json.Marshal(map[string]string{"filename": "facts.txt", "text": "The launch is in April."})
	res, err := http.Post(env.ts.URL+"/api/knowledge/ingest?chat_id=chat-k", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ingest request error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d", res.StatusCode)
	}
	ingested := decodeBody(t, res)
	if ingested["chunks"].(float64) < 1 {
		t.Errorf("ingest response = %+v", ingested)
	}

	listRes, err := http.Get(env.ts.URL + "/api/knowledge/list?chat_id=chat-k")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	listed := decodeBody(t, listRes)
	if docs := listed["documents"].([]any); len(docs) != 1 {
		t.Fatalf("documents = %v", docs)
	}

	resetRes, err := http.Post(env.ts.URL+"/api/knowledge/reset?chat_id=chat-k", "application/json", nil)
	if err != nil {
		t.Fatalf("reset request error = %v", err)
	}
	resetRes.Body.Close()

	listRes, err = http.Get(env.ts.URL + "/api/knowledge/list?chat_id=chat-k")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	if listed = decodeBody(t, listRes); len(listed["documents"].([]any)) != 0 {
		t.Errorf("documents after reset = %v", listed["documents"])
	}

	// Scoped endpoints reject unknown chats.
	missing, err := http.Get(env.ts.URL + "/api/knowledge/list?chat_id=gone")
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown chat status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

var chatIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestVoiceWebsocketEndToEnd(t *testing.T) {
	env := newTestServer(t, config.Config{})
	mock := agent.NewMockAgent()
	env.factory.Queue(mock)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws?voice=tina&endpointing=HIGH"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First message is chatInit with a 32-hex chat id.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var init struct {
		Event struct {
			ChatInit struct {
				ChatID string `json:"chatId"`
			} `json:"chatInit"`
		} `json:"event"`
	}
	if err := conn.ReadJSON(&init); err != nil {
		t.Fatalf("read chatInit: %v", err)
	}
	chatID := init.Event.ChatInit.ChatID
	if !chatIDPattern.MatchString(chatID) {
		t.Fatalf("chatId = %q, want 32 hex chars", chatID)
	}
	if !env.reg.Exists(chatID) {
		t.Fatal("chat not registered while connected")
	}
	if minted := env.factory.MintedChats(); len(minted) != 1 || minted[0] != chatID {
		t.Fatalf("minted chats = %v", minted)
	}

	// Typed text comes back as transcript envelopes.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	var reply struct {
		Event struct {
			TextOutput *struct {
				Content string `json:"content"`
				IsFinal bool   `json:"isFinal"`
			} `json:"textOutput"`
		} `json:"event"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Event.TextOutput == nil || reply.Event.TextOutput.Content != "You said: hello" {
		t.Fatalf("reply = %+v", reply.Event)
	}

	// Scoped endpoints see the live chat.
	res, err := http.Get(env.ts.URL + "/api/media/list?chat_id=" + chatID)
	if err != nil {
		t.Fatalf("list request error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status while connected = %d", res.StatusCode)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.reg.Exists(chatID) {
		if time.Now().After(deadline) {
			t.Fatal("chat still registered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if mock.StopCalls() == 0 {
		t.Error("agent was not stopped on disconnect")
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestServer(t, config.Config{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		res, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, res.StatusCode)
		}
	}
}
