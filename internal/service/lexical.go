package service

import (
	"math"
	"regexp"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// lexicalSearch ranks chunks by the Ochiai coefficient of their word sets
// with the query.
func lexicalSearch(query string, chunks []domain.Chunk, topK int) []domain.SearchResult {
	qset := toTokenSet(query)
	results := make([]domain.SearchResult, len(chunks))
	for i, ch := range chunks {
		results[i] = domain.SearchResult{Chunk: ch, Score: overlapOchiai(qset, toTokenSet(ch.Text))}
	}
	vectorstore.SortResults(results)
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	return results[:min(topK, len(results))]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai returns |A∩B| / sqrt(|A||B|).
func overlapOchiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
