package composer

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Composer stuffs retrieved chunks into a single prompt and asks the generator.
type Composer struct {
	generator domain.Generator
}

func New(generator domain.Generator) *Composer {
	return &Composer{generator: generator}
}

// Prompt builds the prompt for query from results in rank order.
func Prompt(query string, results []domain.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Chunk.Text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), query)
}

func (c *Composer) Compose(ctx context.Context, query string, results []domain.SearchResult) (*domain.Answer, error) {
	text, err := c.generator.Generate(ctx, Prompt(query, results))
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}
	return &domain.Answer{Query: query, Text: text, Sources: results}, nil
}
