package summarizer

import (
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// LeadSummarizer returns the opening sentences of the text.
type LeadSummarizer struct{}

func (LeadSummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	sentences := splitSentences(text)
	return strings.Join(sentences[:min(maxSentences, len(sentences))], " "), nil
}

// None disables the preview.
type None struct{}

func (None) Summarize(string, int) (string, error) { return "", nil }

// New returns the summarizer registered under kind: frequency, lead or none.
func New(kind string) (domain.Summarizer, error) {
	switch strings.ToLower(kind) {
	case "", "frequency":
		return NewFrequencySummarizer(), nil
	case "lead":
		return LeadSummarizer{}, nil
	case "none", "off":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown summarizer %q", domain.ErrInvalidConfig, kind)
	}
}
