package embedding

import "context"

// EmbeddingProvider defines the interface for generating text embeddings.
// Implementations take batches; callers bound batch size themselves.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
