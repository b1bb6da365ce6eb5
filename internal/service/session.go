package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/vectorstore"
)

// State is where a session is in its source/query lifecycle.
type State int

const (
	NoSource State = iota
	SourceLoading
	IndexReady
	Retrieving
	Composing
	SourceError
	QueryError
)

func (s State) String() string {
	switch s {
	case NoSource:
		return "no source"
	case SourceLoading:
		return "loading source"
	case IndexReady:
		return "ready"
	case Retrieving:
		return "retrieving"
	case Composing:
		return "composing"
	case SourceError:
		return "source error"
	case QueryError:
		return "query error"
	}
	return "unknown"
}

// Stage names a step of the source pipeline, reported through WithProgress.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageChunk     Stage = "chunk"
	StageEmbed     Stage = "embed"
	StageIndex     Stage = "index"
	StageSummarize Stage = "summarize"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StageExtract, StageChunk, StageEmbed, StageIndex, StageSummarize}

// Answerer turns retrieved chunks into an answer.
type Answerer interface {
	Compose(ctx context.Context, query string, results []domain.SearchResult) (*domain.Answer, error)
}

// Components are the pipeline stages a session drives.
type Components struct {
	Extractors map[domain.SourceKind]domain.Extractor
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Index      domain.VectorIndex
	Answerer   Answerer
	Summarizer domain.Summarizer
}

// LoadResult describes a freshly indexed source.
type LoadResult struct {
	Document *domain.Document
	Chunks   []domain.Chunk
	Summary  string
}

// Session owns one user's API key, the current source and its index.
// It is not safe for concurrent use; callers run one action at a time.
type Session struct {
	id     string
	apiKey string
	c      Components

	topK             int
	summarySentences int
	progress         func(Stage)
	log              *logger.Logger

	state    State
	lastErr  error
	document *domain.Document
	chunks   []domain.Chunk
	indexed  bool
}

type Option func(*Session)

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(s *Session) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithSummarySentences sets the length of the source preview.
func WithSummarySentences(n int) Option {
	return func(s *Session) { s.summarySentences = n }
}

// WithProgress registers a callback invoked as each pipeline stage starts.
func WithProgress(fn func(Stage)) Option {
	return func(s *Session) { s.progress = fn }
}

// WithID fixes the session ID, e.g. when a per-session resource was named before the session existed.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

func NewSession(apiKey string, c Components, opts ...Option) *Session {
	s := &Session{
		id:               uuid.NewString(),
		apiKey:           apiKey,
		c:                c,
		topK:             vectorstore.DefaultTopK,
		summarySentences: 3,
		log:              logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session_id", s.id)
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) State() State { return s.state }
func (s *Session) Err() error { return s.lastErr }
func (s *Session) HasKey() bool { return s.apiKey != "" }
func (s *Session) TopK() int { return s.topK }
func (s *Session) Chunks() []domain.Chunk { return s.chunks }

// Document returns the current source, or nil.
func (s *Session) Document() *domain.Document { return s.document }

// LoadVideo indexes the transcript of the video at url.
func (s *Session) LoadVideo(ctx context.Context, url string) (*LoadResult, error) {
	return s.Load(ctx, domain.SourceRef{Kind: domain.SourceVideo, Locator: url})
}

// LoadPDF indexes an uploaded PDF.
func (s *Session) LoadPDF(ctx context.Context, name string, data []byte) (*LoadResult, error) {
	return s.Load(ctx, domain.SourceRef{Kind: domain.SourceFile, Locator: name, Data: data})
}

// Load discards the current source and index, then extracts, chunks,
// embeds and indexes ref. On failure the session has no index but still
// accepts a new source.
func (s *Session) Load(ctx context.Context, ref domain.SourceRef) (*LoadResult, error) {
	s.discard(ctx)
	s.state = SourceLoading
	s.lastErr = nil

	res, err := s.load(ctx, ref)
	if err != nil {
		s.state = SourceError
		s.lastErr = err
		s.log.Error("load source failed", "kind", ref.Kind, "locator", ref.Locator, "error_kind", domain.KindOf(err).String(), "error", err)
		return nil, err
	}
	s.document = res.Document
	s.chunks = res.Chunks
	s.indexed = true
	s.state = IndexReady
	s.log.Info("source indexed", "kind", ref.Kind, "id", res.Document.ID, "chunks", len(res.Chunks))
	return res, nil
}

func (s *Session) load(ctx context.Context, ref domain.SourceRef) (*LoadResult, error) {
	extractor, ok := s.c.Extractors[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for %s sources", domain.ErrInvalidConfig, ref.Kind)
	}

	s.report(StageExtract)
	doc, err := extractor.Extract(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.report(StageChunk)
	chunks, err := s.c.Chunker.Chunk(*doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s has no text to index: %w", doc.ID, domain.ErrSourceUnavailable)
	}

	s.report(StageEmbed)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.c.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingService, len(vectors), len(chunks))
	}

	s.report(StageIndex)
	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := s.c.Index.Build(ctx, entries); err != nil {
		return nil, err
	}

	s.report(StageSummarize)
	summary := ""
	if s.c.Summarizer != nil {
		summary, err = s.c.Summarizer.Summarize(doc.Content, s.summarySentences)
		if err != nil {
			s.log.Warn("summarize source", "id", doc.ID, "error", err)
			summary = ""
		}
	}
	return &LoadResult{Document: doc, Chunks: chunks, Summary: summary}, nil
}

// Ask answers query from the current index. A failed question keeps the index.
func (s *Session) Ask(ctx context.Context, query string) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if !s.indexed {
		return nil, domain.ErrEmptyIndex
	}

	ans, err := s.ask(ctx, query)
	if err != nil {
		s.state = QueryError
		s.lastErr = err
		s.log.Error("answer question failed", "error_kind", domain.KindOf(err).String(), "error", err)
		return nil, err
	}
	s.state = IndexReady
	s.lastErr = nil
	return ans, nil
}

func (s *Session) ask(ctx context.Context, query string) (*domain.Answer, error) {
	s.state = Retrieving
	vec, err := s.c.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	var results []domain.SearchResult
	if isZero(vec) {
		// No overlap with the index vocabulary; rank by shared words instead.
		results = lexicalSearch(query, s.chunks, s.topK)
	} else {
		results, err = s.c.Index.Search(ctx, vec, s.topK)
		if err != nil {
			return nil, err
		}
	}
	s.log.Debug("retrieved chunks", "count", len(results), "top_k", s.topK)

	s.state = Composing
	return s.c.Answerer.Compose(ctx, query, results)
}

// Close drops the source, the index and the API key.
func (s *Session) Close() error {
	s.discard(context.Background())
	s.apiKey = ""
	s.state = NoSource
	s.lastErr = nil
	return s.c.Index.Close()
}

func (s *Session) discard(ctx context.Context) {
	s.document = nil
	s.chunks = nil
	if s.indexed || s.state == SourceError {
		if err := s.c.Index.Reset(ctx); err != nil {
			s.log.Warn("reset index", "error", err)
		}
	}
	s.indexed = false
}

func (s *Session) report(stage Stage) {
	if s.progress != nil {
		s.progress(stage)
	}
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
