package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/embedding"
	"rag-agent-be/pkg/vectorstore"
)

// DefaultTopK is how many chunks a search returns when the caller does
// not ask for a specific amount.
const DefaultTopK = 5

const (
	embeddingCacheTTL     = 10 * time.Minute
	embeddingCacheCleanup = 30 * time.Minute
)

// Result is one retrieved chunk with its provenance and similarity score.
type Result struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// VectorSearcher is the slice of the vector store the gateway needs.
type VectorSearcher interface {
	Search(ctx context.Context, queryVec []float32, topK int) ([]vectorstore.SearchResult, error)
}

// Gateway embeds queries and runs similarity search against the vector
// store. Query embeddings are cached so repeated questions within a
// session do not hit the embedding model again.
type Gateway struct {
	embedder embedding.EmbeddingProvider
	store    VectorSearcher
	cache    *gocache.Cache
	logger   logger.ILogger
}

func NewGateway(embedder embedding.EmbeddingProvider, store VectorSearcher, log logger.ILogger) *Gateway {
	return &Gateway{
		embedder: embedder,
		store:    store,
		cache:    gocache.New(embeddingCacheTTL, embeddingCacheCleanup),
		logger:   log,
	}
}

// Search embeds the query and returns the topK most similar chunks.
// topK values of zero or less fall back to DefaultTopK.
func (g *Gateway) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := g.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := g.store.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Text:   hit.Text,
			Source: hit.Source,
			Score:  hit.Score,
		})
	}

	g.logger.Debug("Retrieval", "similarity search completed", map[string]interface{}{
		"top_k": topK,
		"hits":  len(results),
	})
	return results, nil
}

func (g *Gateway) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if cached, found := g.cache.Get(query); found {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := g.embedder.Generate(ctx, query)
	if err != nil {
		return nil, err
	}

	g.cache.Set(query, vec, gocache.DefaultExpiration)
	return vec, nil
}

// FormatResults renders results as a numbered context block for prompts.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, r.Text))
	}
	return strings.Join(parts, "\n\n")
}
