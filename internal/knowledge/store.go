package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Chunk is one embedded slice of an ingested document, scoped to a chat.
type Chunk struct {
	ID        string
	ChatID    string
	Filename  string
	Text      string
	Embedding []float64
	CreatedAt time.Time
}

// DocumentInfo summarizes one ingested document.
type DocumentInfo struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// Store persists embedded chunks and answers similarity queries.
type Store interface {
	Add(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, chatID string, embedding []float64, topK int) ([]Chunk, error)
	ListDocuments(ctx context.Context, chatID string) ([]DocumentInfo, error)
	ClearChat(ctx context.Context, chatID string) error
	Close()
}

// MemoryStore is the in-process fallback store used when no database is
// configured. Similarity is cosine over the stored embeddings.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Add(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, chatID string, embedding []float64, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 2
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk Chunk
		score float64
	}
	var candidates []scored
	for _, c := range s.chunks {
		if c.ChatID != chatID {
			continue
		}
		candidates = append(candidates, scored{chunk: c, score: cosine(embedding, c.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.chunk)
	}
	return out, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, chatID string) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	var order []string
	for _, c := range s.chunks {
		if c.ChatID != chatID {
			continue
		}
		if _, ok := counts[c.Filename]; !ok {
			order = append(order, c.Filename)
		}
		counts[c.Filename]++
	}
	out := make([]DocumentInfo, 0, len(order))
	for _, fn := range order {
		out = append(out, DocumentInfo{Filename: fn, Chunks: counts[fn]})
	}
	return out, nil
}

func (s *MemoryStore) ClearChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.ChatID != chatID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *MemoryStore) Close() {}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
