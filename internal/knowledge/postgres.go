package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists chunks in PostgreSQL with pgvector similarity.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, databaseURL string, embeddingDim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, dim: embeddingDim}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, s.dim),
		`CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_chat ON knowledge_chunks (chat_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, chat_id, filename, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5::vector, $6)`,
			c.ID, c.ChatID, c.Filename, c.Text, vectorLiteral(c.Embedding), c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, chatID string, embedding []float64, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 2
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, filename, content, created_at
		 FROM knowledge_chunks
		 WHERE chat_id = $1
		 ORDER BY embedding <=> $2::vector
		 LIMIT $3`,
		chatID, vectorLiteral(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ChatID, &c.Filename, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDocuments(ctx context.Context, chatID string) ([]DocumentInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT filename, COUNT(*)
		 FROM knowledge_chunks
		 WHERE chat_id = $1
		 GROUP BY filename
		 ORDER BY MIN(created_at)`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.Filename, &d.Chunks); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ClearChat(ctx context.Context, chatID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM knowledge_chunks WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("clear chat chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// vectorLiteral renders a pgvector input literal like "[0.1,0.2]".
func vectorLiteral(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// NewStore creates a postgres-backed store when a database URL is
// configured, otherwise the in-memory fallback.
func NewStore(ctx context.Context, databaseURL string, embeddingDim int) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL, embeddingDim)
}
