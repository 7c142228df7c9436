package ingestion

import (
	"context"
	"fmt"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/embedding"
)

// ChunkStore is the slice of the vector store the pipeline needs.
type ChunkStore interface {
	EnsureCollection(ctx context.Context) error
	Insert(ctx context.Context, texts []string, vectors [][]float32, sources []string) (int, error)
}

// Pipeline runs the full ingestion flow: load -> chunk -> embed -> store.
type Pipeline struct {
	embedder embedding.EmbeddingProvider
	store    ChunkStore
	splitter *Splitter
	logger   logger.ILogger
}

func NewPipeline(embedder embedding.EmbeddingProvider, store ChunkStore, splitter *Splitter, log logger.ILogger) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: splitter,
		logger:   log,
	}
}

// Ingest processes one file and returns the number of chunks stored.
// A file that loads but yields no text (or no chunks) is a soft no-op
// returning 0, not an error.
func (p *Pipeline) Ingest(ctx context.Context, filePath string) (int, error) {
	p.logger.Info("Ingestion", "starting ingestion", map[string]interface{}{
		"path": filePath,
	})

	// Load
	blocks, err := LoadDocument(filePath)
	if err != nil {
		return 0, err
	}
	if len(blocks) == 0 {
		p.logger.Warn("Ingestion", "no content extracted", map[string]interface{}{
			"path": filePath,
		})
		return 0, nil
	}

	// Chunk; every chunk carries its originating file path as source.
	var chunks []string
	var sources []string
	for _, block := range blocks {
		for _, chunk := range p.splitter.Split(block) {
			chunks = append(chunks, chunk)
			sources = append(sources, filePath)
		}
	}
	if len(chunks) == 0 {
		p.logger.Warn("Ingestion", "no chunks produced", map[string]interface{}{
			"path": filePath,
		})
		return 0, nil
	}

	// Embed
	vectors, err := p.embedder.GenerateBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	// Store
	if err := p.store.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	count, err := p.store.Insert(ctx, chunks, vectors, sources)
	if err != nil {
		return 0, err
	}

	p.logger.Info("Ingestion", "ingestion complete", map[string]interface{}{
		"path":   filePath,
		"chunks": count,
	})
	return count, nil
}
