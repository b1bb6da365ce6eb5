package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/vectorstore/memory"
)

type mockExtractor struct {
	ExtractFunc func(ref domain.SourceRef) (*domain.Document, error)
}

func (m *mockExtractor) Extract(_ context.Context, ref domain.SourceRef) (*domain.Document, error) {
	return m.ExtractFunc(ref)
}

// docs serves documents keyed by locator.
func docs(byLocator map[string]string) *mockExtractor {
	return &mockExtractor{ExtractFunc: func(ref domain.SourceRef) (*domain.Document, error) {
		text, ok := byLocator[ref.Locator]
		if !ok {
			return nil, fmt.Errorf("%s: %w", ref.Locator, domain.ErrSourceNotFound)
		}
		return &domain.Document{ID: ref.Locator, Kind: ref.Kind, Content: text}, nil
	}}
}

type mockEmbedder struct {
	DocFunc   func(texts []string) ([][]float32, error)
	QueryFunc func(text string) ([]float32, error)
}

func (m *mockEmbedder) Name() string { return "mock" }

func (m *mockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return m.DocFunc(texts)
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return m.QueryFunc(text)
}

// letterEmbedder maps text to counts of a few letters, so similar text gets similar vectors.
func letterEmbedder() *mockEmbedder {
	embed := func(s string) []float32 {
		s = strings.ToLower(s)
		return []float32{
			float32(strings.Count(s, "a")) + 0.01,
			float32(strings.Count(s, "b")),
			float32(strings.Count(s, "c")),
		}
	}
	return &mockEmbedder{
		DocFunc: func(texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, t := range texts {
				out[i] = embed(t)
			}
			return out, nil
		},
		QueryFunc: func(text string) ([]float32, error) { return embed(text), nil },
	}
}

type mockAnswerer struct {
	ComposeFunc func(query string, results []domain.SearchResult) (*domain.Answer, error)
	results     []domain.SearchResult
}

func (m *mockAnswerer) Compose(_ context.Context, query string, results []domain.SearchResult) (*domain.Answer, error) {
	m.results = results
	if m.ComposeFunc != nil {
		return m.ComposeFunc(query, results)
	}
	return &domain.Answer{Query: query, Text: "answer", Sources: results}, nil
}

func newTestSession(ext domain.Extractor, emb domain.Embedder, ans *mockAnswerer, opts ...Option) *Session {
	return NewSession("test-key", Components{
		Extractors: map[domain.SourceKind]domain.Extractor{domain.SourceVideo: ext, domain.SourceFile: ext},
		Chunker:    chunker.NewCharacterChunker(1000, 200, ". "),
		Embedder:   emb,
		Index:      memory.NewStorage(),
		Answerer:   ans,
	}, opts...)
}

func TestEndToEndSingleChunk(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	emb := &mockEmbedder{
		DocFunc: func(texts []string) ([][]float32, error) {
			require.Equal(t, []string{"A. B. C."}, texts)
			return [][]float32{vec}, nil
		},
		QueryFunc: func(string) ([]float32, error) { return vec, nil },
	}
	ans := &mockAnswerer{}
	s := newTestSession(docs(map[string]string{"v": "A. B. C."}), emb, ans)

	res, err := s.LoadVideo(context.Background(), "v")
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, IndexReady, s.State())

	answer, err := s.Ask(context.Background(), "What comes after A?")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Text)
	require.NotEmpty(t, ans.results)
	assert.Equal(t, "A. B. C.", ans.results[0].Chunk.Text)
	assert.InDelta(t, 1.0, ans.results[0].Score, 1e-6)
}

func TestAskBeforeLoad(t *testing.T) {
	s := newTestSession(docs(nil), letterEmbedder(), &mockAnswerer{})
	_, err := s.Ask(context.Background(), "anything?")
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
	assert.Equal(t, NoSource, s.State())
}

func TestAskBlankQuery(t *testing.T) {
	s := newTestSession(docs(map[string]string{"v": "abc"}), letterEmbedder(), &mockAnswerer{})
	_, err := s.LoadVideo(context.Background(), "v")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestLoadReplacesPreviousSource(t *testing.T) {
	ans := &mockAnswerer{}
	s := newTestSession(docs(map[string]string{
		"a": "aaaa aaa. aa aaaa.",
		"b": "bbbb bbb. bb bbbb.",
	}), letterEmbedder(), ans)
	ctx := context.Background()

	_, err := s.LoadVideo(ctx, "a")
	require.NoError(t, err)
	_, err = s.LoadVideo(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", s.Document().ID)

	// A query phrased entirely in source A's terms still only sees B.
	_, err = s.Ask(ctx, "aaaa aaaa aaaa")
	require.NoError(t, err)
	require.NotEmpty(t, ans.results)
	for _, r := range ans.results {
		assert.Equal(t, "b", r.Chunk.SourceID)
	}
}

func TestLoadFailureLeavesNoIndex(t *testing.T) {
	s := newTestSession(docs(map[string]string{"good": "abc abc"}), letterEmbedder(), &mockAnswerer{})
	ctx := context.Background()

	_, err := s.LoadVideo(ctx, "good")
	require.NoError(t, err)

	_, err = s.LoadVideo(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.Equal(t, SourceError, s.State())
	assert.Nil(t, s.Document())

	_, err = s.Ask(ctx, "abc?")
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)

	// still accepts a new source
	_, err = s.LoadVideo(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, IndexReady, s.State())
}

func TestEmbeddingFailureIsSourceError(t *testing.T) {
	emb := letterEmbedder()
	emb.DocFunc = func([]string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: quota exceeded", domain.ErrEmbeddingService)
	}
	s := newTestSession(docs(map[string]string{"v": "abc"}), emb, &mockAnswerer{})
	_, err := s.LoadVideo(context.Background(), "v")
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Equal(t, SourceError, s.State())
}

func TestQueryFailureKeepsIndex(t *testing.T) {
	fail := true
	ans := &mockAnswerer{ComposeFunc: func(q string, r []domain.SearchResult) (*domain.Answer, error) {
		if fail {
			return nil, fmt.Errorf("%w: prompt blocked", domain.ErrContentBlocked)
		}
		return &domain.Answer{Query: q, Text: "ok", Sources: r}, nil
	}}
	s := newTestSession(docs(map[string]string{"v": "abc"}), letterEmbedder(), ans)
	ctx := context.Background()
	_, err := s.LoadVideo(ctx, "v")
	require.NoError(t, err)

	_, err = s.Ask(ctx, "abc?")
	require.ErrorIs(t, err, domain.ErrContentBlocked)
	assert.Equal(t, QueryError, s.State())

	fail = false
	answer, err := s.Ask(ctx, "abc?")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
	assert.Equal(t, IndexReady, s.State())
}

func TestProgressStages(t *testing.T) {
	var stages []Stage
	s := newTestSession(docs(map[string]string{"v": "abc"}), letterEmbedder(), &mockAnswerer{},
		WithProgress(func(st Stage) { stages = append(stages, st) }))
	_, err := s.LoadVideo(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, Stages, stages)
}

func TestZeroQueryVectorFallsBackToWords(t *testing.T) {
	emb := letterEmbedder()
	emb.QueryFunc = func(string) ([]float32, error) { return []float32{0, 0, 0}, nil }
	ans := &mockAnswerer{}
	s := newTestSession(docs(map[string]string{"v": strings.Repeat("x", 900) + ". gophers dig tunnels. " + strings.Repeat("y", 900)}),
		emb, ans, WithTopK(1))
	_, err := s.LoadVideo(context.Background(), "v")
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), "do gophers dig?")
	require.NoError(t, err)
	require.Len(t, ans.results, 1)
	assert.Contains(t, ans.results[0].Chunk.Text, "gophers")
}

func TestCloseClearsSession(t *testing.T) {
	s := newTestSession(docs(map[string]string{"v": "abc"}), letterEmbedder(), &mockAnswerer{})
	_, err := s.LoadVideo(context.Background(), "v")
	require.NoError(t, err)
	require.True(t, s.HasKey())

	require.NoError(t, s.Close())
	assert.False(t, s.HasKey())
	assert.Nil(t, s.Document())
	assert.Empty(t, s.Chunks())
	_, err = s.Ask(context.Background(), "abc?")
	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newTestSession(docs(nil), letterEmbedder(), &mockAnswerer{})
	b := newTestSession(docs(nil), letterEmbedder(), &mockAnswerer{})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 36)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%q: %w", "x", domain.ErrInvalidURL), "https://youtu.be/VIDEO_ID"},
		{fmt.Errorf("video x: %w", domain.ErrCaptionsDisabled), "captions disabled"},
		{fmt.Errorf("video x: %w", domain.ErrNoTranscriptFound), "No captions found"},
		{fmt.Errorf("video x: This video is private: %w", domain.ErrSourceNotFound), "Error: video x: This video is private\n"},
		{fmt.Errorf("%w: quota exceeded", domain.ErrEmbeddingService), "Could not create embeddings: quota exceeded"},
		{domain.ErrEmptyIndex, "Load a video or a PDF first"},
		{fmt.Errorf("%w: SAFETY", domain.ErrContentBlocked), "rephrasing"},
		{fmt.Errorf("%w: invalid API key", domain.ErrGeneration), "The model could not answer: invalid API key"},
		{errors.New("boom"), "An unexpected error occurred: boom"},
	}
	for _, tt := range tests {
		assert.Contains(t, UserMessage(tt.err), tt.want)
	}
	assert.Empty(t, UserMessage(nil))
}
