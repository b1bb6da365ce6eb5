package gemini

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"ragchat/internal/domain"
	llmgemini "ragchat/internal/llm/gemini"
	"ragchat/internal/logger"
)

const (
	DefaultModel = "models/embedding-001"
	// MaxBatchSize is the largest number of texts the API accepts per request.
	MaxBatchSize = 100

	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// contentEmbedder is satisfied by *genai.Models.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config selects the embedding model and request pacing.
type Config struct {
	Model             string
	BatchSize         int
	RequestsPerMinute int
}

// Embedder produces embeddings with the Gemini embedding API.
type Embedder struct {
	models    contentEmbedder
	model     string
	batchSize int
	limiter   *rate.Limiter
	log       *logger.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, log *logger.Logger) *Embedder {
	return newEmbedder(client.Models, cfg, log)
}

func newEmbedder(models contentEmbedder, cfg Config, log *logger.Logger) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Embedder{
		models:    models,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log,
	}
}

func (e *Embedder) Name() string { return "gemini:" + e.model }

// EmbedDocuments embeds every text as a retrieval document, splitting the
// input into API-sized requests. Order is preserved.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", domain.ErrEmbeddingService)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end], taskDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		e.log.Debug("embedded batch", "model", e.model, "from", start, "to", end, "total", len(texts))
	}
	return out, nil
}

// EmbedQuery embeds a question as a retrieval query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: task})
	if err != nil {
		e.log.Warn("embed content failed", "model", e.model, "texts", len(texts), "error", err)
		return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingService, llmgemini.Describe(err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbeddingService, len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", domain.ErrEmbeddingService, i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
