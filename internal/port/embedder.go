package port

import "context"

// Embedder turns text into a dense vector.
type Embedder interface {
	// Embed returns the embedding for a single text. An empty vector is
	// never returned together with a nil error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// EmbeddingCache persists embeddings between runs.
type EmbeddingCache interface {
	Get(key string) ([]float32, bool, error)
	Put(key string, vector []float32) error
}

// VectorStore holds records with embeddings and metadata of type M and
// answers nearest-neighbour queries by cosine similarity.
type VectorStore[M any] interface {
	// Upsert replaces records whose ID already exists and appends the rest.
	Upsert(records []VectorRecord[M])

	// Query returns at most topK records, most similar first.
	Query(query []float32, topK int) []VectorMatch[M]

	// Count returns the number of stored records.
	Count() int
}

// VectorRecord is a stored item.
type VectorRecord[M any] struct {
	ID        string
	Embedding []float32
	Metadata  M
}

// VectorMatch is a query result.
type VectorMatch[M any] struct {
	Record VectorRecord[M]
	Score  float64 // cosine similarity in [-1, 1]
}
