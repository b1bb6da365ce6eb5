package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Storage is an in-memory vector index using exact brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	norms     []float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

// Build replaces the index contents with entries.
func (s *Storage) Build(_ context.Context, entries []domain.IndexEntry) error {
	dim, err := vectorstore.ValidateEntries(entries)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	vectors := make([][]float32, len(entries))
	norms := make([]float64, len(entries))
	chunks := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
		norms[i] = norm(e.Vector)
		chunks[i] = e.Chunk
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	s.vectors = vectors
	s.norms = norms
	s.chunks = chunks
	return nil
}

// Search returns the k entries most similar to vector, ties broken by chunk index.
func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("search: query dimension %d does not match index dimension %d", len(vector), s.dimension)
	}
	if k <= 0 {
		k = vectorstore.DefaultTopK
	}
	qn := norm(vector)
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{Chunk: s.chunks[i], Score: cosine(s.vectors[i], s.norms[i], vector, qn)}
	}
	vectorstore.SortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Close() error { return s.Reset(context.Background()) }

// Len returns the number of indexed entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (an * bn)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
