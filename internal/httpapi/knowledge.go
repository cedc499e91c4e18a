package httpapi

import (
	"net/http"
	"strings"
)

type ingestRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (s *Server) handleKnowledgeIngest(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		req.Filename = "pasted_text.txt"
	}

	chunks, err := s.knowledge.IngestText(r.Context(), chatID, req.Filename, req.Text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"filename": req.Filename, "chunks": chunks})
}

func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}
	docs, err := s.knowledge.ListDocuments(r.Context(), chatID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	type docView struct {
		Filename string `json:"filename"`
		Chunks   int    `json:"chunks"`
	}
	views := make([]docView, 0, len(docs))
	for _, d := range docs {
		views = append(views, docView{Filename: d.Filename, Chunks: d.Chunks})
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": views})
}

func (s *Server) handleKnowledgeReset(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatSession(w, r)
	if !ok {
		return
	}
	if err := s.knowledge.Reset(r.Context(), chatID); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}
