// Package knowledge is the per-chat document knowledge base: documents are
// chunked, embedded and stored at ingest time, then retrieved by vector
// similarity when the document-search tool runs.
package knowledge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"
)

// Embedder turns text into an embedding vector. Implemented by the Titan
// embedding model; tests substitute a deterministic stub.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Extractor pulls plain text out of an uploaded document payload.
type Extractor interface {
	ExtractText(data []byte, filename string) (string, error)
}

// PlainTextExtractor decodes the payload as (lossy) UTF-8 text.
type PlainTextExtractor struct{}

func (PlainTextExtractor) ExtractText(data []byte, _ string) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}

const noResults = "No relevant information found."

// Service ties chunking, embedding and storage together.
type Service struct {
	store        Store
	embedder     Embedder
	pdfExtractor Extractor
	chunkSize    int
	chunkOverlap int
	topK         int
	embeddingDim int
}

type ServiceConfig struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	EmbeddingDim int
	// PDFExtractor is optional; without one PDF bytes fall back to the
	// plain-text extractor.
	PDFExtractor Extractor
}

func NewService(store Store, embedder Embedder, cfg ServiceConfig) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 1024
	}
	if cfg.PDFExtractor == nil {
		cfg.PDFExtractor = PlainTextExtractor{}
	}
	return &Service{
		store:        store,
		embedder:     embedder,
		pdfExtractor: cfg.PDFExtractor,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		topK:         cfg.TopK,
		embeddingDim: cfg.EmbeddingDim,
	}
}

// IngestText chunks, embeds and stores text for a chat. Returns the number
// of stored chunks. A failed embedding does not abort the ingest; the chunk
// is stored with a zero vector and logged.
func (s *Service) IngestText(ctx context.Context, chatID, filename, text string) (int, error) {
	parts := splitText(text, s.chunkSize, s.chunkOverlap)
	if len(parts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		vec, err := s.embedder.Embed(ctx, part)
		if err != nil {
			log.Printf("knowledge: embedding failed for %q chunk: %v", filename, err)
			vec = make([]float64, s.embeddingDim)
		}
		chunks = append(chunks, Chunk{
			ID:        "chunk_" + randomHex(4),
			ChatID:    chatID,
			Filename:  filename,
			Text:      part,
			Embedding: vec,
			CreatedAt: now,
		})
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// IngestDocument extracts text from an uploaded payload and ingests it.
func (s *Service) IngestDocument(ctx context.Context, chatID, filename string, data []byte) (int, error) {
	var (
		text string
		err  error
	)
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err = s.pdfExtractor.ExtractText(data, filename)
	} else {
		text, err = PlainTextExtractor{}.ExtractText(data, filename)
	}
	if err != nil {
		return 0, fmt.Errorf("extract text from %q: %w", filename, err)
	}
	return s.IngestText(ctx, chatID, filename, text)
}

// Retrieve embeds the query, finds the most similar chunks for the chat and
// formats them as a source-tagged context string for prompt assembly.
func (s *Service) Retrieve(ctx context.Context, chatID, query string) string {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("knowledge: query embedding failed: %v", err)
		return noResults
	}
	chunks, err := s.store.Query(ctx, chatID, vec, s.topK)
	if err != nil {
		log.Printf("knowledge: retrieval failed: %v", err)
		return noResults
	}
	if len(chunks) == 0 {
		return noResults
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		text := c.Text
		if len(text) > 800 {
			text = text[:800]
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", c.Filename, sanitize(text)))
	}
	return strings.Join(parts, "\n---\n")
}

func (s *Service) ListDocuments(ctx context.Context, chatID string) ([]DocumentInfo, error) {
	return s.store.ListDocuments(ctx, chatID)
}

// Reset drops all knowledge content for a chat.
func (s *Service) Reset(ctx context.Context, chatID string) error {
	return s.store.ClearChat(ctx, chatID)
}

func (s *Service) Close() { s.store.Close() }

// sanitize keeps printable ASCII only; upstream voice synthesis chokes on
// stray control and wide characters from PDF extraction.
func sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && (unicode.IsPrint(r) || r == '\n') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
