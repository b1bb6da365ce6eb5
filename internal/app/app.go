// Package app assembles a chat session from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/chunker"
	"ragchat/internal/composer"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	embgemini "ragchat/internal/embedding/gemini"
	"ragchat/internal/embedding/tfidf"
	llmgemini "ragchat/internal/llm/gemini"
	"ragchat/internal/logger"
	"ragchat/internal/service"
	"ragchat/internal/source/pdf"
	"ragchat/internal/source/youtube"
	"ragchat/internal/summarizer"
	"ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

// Options carries what a session needs beyond the config file.
type Options struct {
	Config *config.AppConfig
	APIKey string
	Logger *logger.Logger
	// TopK overrides retrieval.top_k when positive.
	TopK     int
	Progress func(service.Stage)
	// HTTPClient is used for YouTube and Gemini requests when set.
	HTTPClient *http.Client
}

// NewSession builds every pipeline component named in the config and
// returns a session holding apiKey.
func NewSession(ctx context.Context, opts Options) (*service.Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	for _, w := range cfg.Validate() {
		log.Warn("config", "warning", w)
	}

	client, err := llmgemini.NewClient(ctx, llmgemini.ClientConfig{
		APIKey:     opts.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		Timeout:    seconds(cfg.Gemini.TimeoutSecs),
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	var embedder domain.Embedder
	switch strings.ToLower(cfg.Embedder.Type) {
	case "", "gemini":
		embedder = embgemini.NewEmbedder(client, embgemini.Config{
			Model:             cfg.Gemini.EmbeddingModel,
			BatchSize:         cfg.Embedder.BatchSize,
			RequestsPerMinute: cfg.Embedder.RequestsPerMinute,
		}, log)
	case "tfidf":
		embedder = tfidf.NewEmbedder()
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", domain.ErrInvalidConfig, cfg.Embedder.Type)
	}

	generator, err := llmgemini.NewGenerator(client, llmgemini.GeneratorConfig{
		Model:           cfg.Gemini.ChatModel,
		Temperature:     cfg.Gemini.EffectiveTemperature(),
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Safety:          cfg.Gemini.Safety,
	}, log)
	if err != nil {
		return nil, err
	}

	sum, err := summarizer.New(cfg.Summarizer.Type)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	index, err := newIndex(cfg.VectorStore, id)
	if err != nil {
		return nil, err
	}

	components := service.Components{
		Extractors: map[domain.SourceKind]domain.Extractor{
			domain.SourceVideo: youtube.NewFetcher(youtube.Config{
				BaseURL:           cfg.Transcript.BaseURL,
				Languages:         cfg.Transcript.Languages,
				FallbackLanguages: cfg.Transcript.FallbackLanguages,
				Timeout:           seconds(cfg.Transcript.TimeoutSecs),
				HTTPClient:        opts.HTTPClient,
			}, log),
			domain.SourceFile: pdf.NewExtractor(cfg.PDF.ScratchDir, log),
		},
		Chunker:    chunker.NewCharacterChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, cfg.Chunker.Separator),
		Embedder:   embedder,
		Index:      index,
		Answerer:   composer.New(generator),
		Summarizer: sum,
	}

	topK := cfg.Retrieval.TopK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	log.Info("session assembled", "session_id", id, "embedder", embedder.Name(), "vector_store", cfg.VectorStore.Type, "top_k", topK)
	return service.NewSession(opts.APIKey, components,
		service.WithID(id),
		service.WithTopK(topK),
		service.WithSummarySentences(cfg.Summarizer.MaxSentences),
		service.WithProgress(opts.Progress),
		service.WithLogger(log),
	), nil
}

func newIndex(cfg config.VectorStoreConfig, sessionID string) (domain.VectorIndex, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		qc := config.QdrantConfig{}
		if cfg.Qdrant != nil {
			qc = *cfg.Qdrant
		}
		return qdrant.NewStorage(qdrant.Config{
			Host:       qc.Host,
			Port:       qc.Port,
			APIKey:     qc.APIKey,
			UseTLS:     qc.UseTLS,
			Collection: qc.Collection,
		}, sessionID)
	default:
		return nil, fmt.Errorf("%w: unknown vector store type %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
