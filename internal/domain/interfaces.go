package domain

import "context"

// Extractor turns a source reference into a document.
type Extractor interface {
	Extract(ctx context.Context, ref SourceRef) (*Document, error)
}

// Chunker splits documents into chunks suitable for embedding.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts text into vectors. EmbedDocuments is called once per
// source with every chunk; EmbedQuery once per question.
type Embedder interface {
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and supports nearest-neighbour search.
type VectorIndex interface {
	// Build replaces whatever the index held with entries.
	Build(ctx context.Context, entries []IndexEntry) error
	// Search returns at most k results, most similar first.
	Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	// Reset drops all entries.
	Reset(ctx context.Context) error
	Close() error
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
