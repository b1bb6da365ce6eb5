package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

const sample = `Gophers build tunnels. Gophers eat roots and gophers dig tunnels every day. The weather was nice.
Tunnels made by gophers can be long! Nobody asked.`

func TestFrequencySummarizerKeepsOrder(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize(sample, 3)
	require.NoError(t, err)
	assert.Equal(t, "Gophers build tunnels. Gophers eat roots and gophers dig tunnels every day. Tunnels made by gophers can be long!", out)
}

func TestFrequencySummarizerEmpty(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFrequencySummarizerUnpunctuatedTranscript(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("hello everyone\nwelcome back to the channel", 5)
	require.NoError(t, err)
	assert.Equal(t, "hello everyone welcome back to the channel", out)
}

func TestLeadSummarizer(t *testing.T) {
	out, err := LeadSummarizer{}.Summarize(sample, 2)
	require.NoError(t, err)
	assert.Equal(t, "Gophers build tunnels. Gophers eat roots and gophers dig tunnels every day.", out)
}

func TestNew(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &FrequencySummarizer{}, s)

	s, err = New("none")
	require.NoError(t, err)
	out, _ := s.Summarize(sample, 1)
	assert.Empty(t, out)

	_, err = New("llm")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
