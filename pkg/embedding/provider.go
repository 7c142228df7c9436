package embedding

import "context"

// EmbeddingProvider defines the interface for generating text embeddings.
// Vectors are unit-normalized so cosine distance in the store is accurate.
type EmbeddingProvider interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch embeds texts in order. The result has one vector per
	// input text; a zero-length input yields a zero-length result.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}
