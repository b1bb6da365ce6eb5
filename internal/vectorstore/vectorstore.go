// Package vectorstore holds the pieces shared by the vector index backends.
package vectorstore

import (
	"sort"

	"ragchat/internal/domain"
)

// DefaultTopK is used when a search asks for k <= 0.
const DefaultTopK = 5

// SortResults orders results by descending score, then ascending chunk index,
// so equal scores always come back in the same order.
func SortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
}

// ValidateEntries checks entries are non-empty and share one dimension,
// which it returns.
func ValidateEntries(entries []domain.IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, errNoEntries
	}
	dim := len(entries[0].Vector)
	if dim == 0 {
		return 0, &DimensionError{ChunkIndex: entries[0].Chunk.Index}
	}
	for _, e := range entries {
		if len(e.Vector) != dim {
			return 0, &DimensionError{ChunkIndex: e.Chunk.Index, Got: len(e.Vector), Want: dim}
		}
	}
	return dim, nil
}
