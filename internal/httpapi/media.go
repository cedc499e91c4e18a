package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrosst/voicerag/internal/session"
)

// multipartOverhead is headroom on top of the payload cap for multipart
// framing and headers.
const multipartOverhead = 1 << 20

type attachmentView struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Kind        string    `json:"kind"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(a session.Attachment) attachmentView {
	return attachmentView{
		ID:          a.ID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Kind:        string(a.Kind),
		Size:        len(a.Data),
		CreatedAt:   a.CreatedAt,
	}
}

// handleMediaUpload accepts one multipart file for a live chat. Payloads at
// the configured cap are accepted, anything larger is rejected with 413.
// Document uploads are also fed into the chat's knowledge base so the agent
// can search them right away.
func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "File exceeds the upload size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_upload", "multipart form field 'file' is required")
		return
	}
	defer file.Close()

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	kind := session.KindFromContentType(contentType)
	if kind == session.MediaUnknown {
		respondError(w, http.StatusBadRequest, "unsupported_media", "Unsupported content type: "+contentType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	if int64(len(data)) > s.cfg.UploadMaxBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "File exceeds the upload size limit")
		return
	}

	att, err := s.registry.AddAttachment(chatID, session.Attachment{
		ID:          uuid.NewString(),
		Filename:    header.Filename,
		ContentType: contentType,
		Kind:        kind,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown_chat", "Unknown or expired chat_id")
		return
	}
	s.metrics.UploadBytes.Add(float64(len(data)))

	if kind == session.MediaDocument {
		if _, err := s.knowledge.IngestDocument(r.Context(), chatID, att.Filename, data); err != nil {
			log.Printf("httpapi: ingest uploaded document %s for %s: %v", att.Filename, chatID, err)
		}
	}

	respondJSON(w, http.StatusOK, viewOf(att))
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}
	atts, err := s.registry.ListAttachments(chatID)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown_chat", "Unknown or expired chat_id")
		return
	}
	views := make([]attachmentView, 0, len(atts))
	for _, a := range atts {
		views = append(views, viewOf(a))
	}
	respondJSON(w, http.StatusOK, map[string]any{"files": views})
}

func (s *Server) handleMediaClear(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}
	s.registry.ClearAttachments(chatID)
	if err := s.knowledge.Reset(context.Background(), chatID); err != nil {
		log.Printf("httpapi: reset knowledge for %s: %v", chatID, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}
