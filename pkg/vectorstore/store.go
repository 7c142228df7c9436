package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rag-agent-be/internal/model"
	"rag-agent-be/internal/pkg/logger"
)

// EmbeddingDim is fixed by the embedding model (nomic-embed-text).
const EmbeddingDim = 768

// SearchResult is one similarity hit, ordered best-first.
type SearchResult struct {
	Text   string
	Source string
	Score  float64 // cosine similarity, 1.0 = identical
}

// Store persists (text, vector, source) triples in the document_chunks
// table and answers cosine nearest-neighbor queries over them.
//
// Store is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger logger.ILogger

	mu    sync.Mutex
	ready bool
}

func New(db *gorm.DB, log logger.ILogger) *Store {
	return &Store{
		db:     db,
		logger: log,
	}
}

// EnsureCollection creates the table and its cosine ANN index if missing.
// It is idempotent and safe to call from concurrent requests; the first
// successful run flips a guard so later calls return immediately. A failed
// run leaves the guard down so the next caller retries.
func (s *Store) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&model.DocumentChunk{}); err != nil {
		return fmt.Errorf("migrate document_chunks: %w", err)
	}

	// ivfflat over cosine distance; lists tuned for corpora in the tens of
	// thousands of chunks.
	indexSQL := `CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
		ON document_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 128)`
	if err := s.db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}

	s.ready = true
	s.logger.Info("VectorStore", "collection ready", nil)
	return nil
}

// Insert writes a batch of chunks. All three slices must be the same
// length. Zero-length input is a no-op returning 0.
func (s *Store) Insert(ctx context.Context, texts []string, vectors [][]float32, sources []string) (int, error) {
	if len(texts) != len(vectors) || len(texts) != len(sources) {
		return 0, fmt.Errorf("insert length mismatch: %d texts, %d vectors, %d sources",
			len(texts), len(vectors), len(sources))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]*model.DocumentChunk, len(texts))
	for i := range texts {
		chunks[i] = &model.DocumentChunk{
			Content:   texts[i],
			Embedding: pgvector.NewVector(vectors[i]),
			Source:    sources[i],
		}
	}

	if err := s.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}

	s.logger.Info("VectorStore", "inserted chunks", map[string]interface{}{
		"count": len(chunks),
	})
	return len(chunks), nil
}

// Search returns the topK nearest chunks by cosine similarity, best first.
// Ties fall back to store-internal order.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	type row struct {
		Content    string
		Source     string
		Similarity float64
	}
	var rows []row

	queryVec := pgvector.NewVector(queryVector)

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding <=> query) recovers the similarity score.
	err := s.db.WithContext(ctx).
		Table("document_chunks").
		Select("content, source, 1 - (embedding <=> ?) as similarity", queryVec).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "embedding <=> ?",
			Vars: []interface{}{queryVec},
		}}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			Text:   r.Content,
			Source: r.Source,
			Score:  r.Similarity,
		}
	}

	if len(results) > 0 {
		s.logger.Debug("VectorStore", "search hit", map[string]interface{}{
			"count":     len(results),
			"top_score": results[0].Score,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.DocumentChunk{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}
