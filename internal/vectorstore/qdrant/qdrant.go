package qdrant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// Config holds the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// pointsClient is the part of *qdrant.Client the index uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Storage is a vector index backed by one Qdrant collection per session.
// It assumes cosine distance and recreates the collection on every Build.
type Storage struct {
	client     pointsClient
	collection string
	dimension  int
	count      int
	built      bool
}

// NewStorage connects to Qdrant. The collection name is derived from
// cfg.Collection and sessionID so concurrent sessions never share points.
func NewStorage(cfg Config, sessionID string) (*Storage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newStorage(client, CollectionName(cfg.Collection, sessionID)), nil
}

func newStorage(client pointsClient, collection string) *Storage {
	return &Storage{client: client, collection: collection}
}

// Collection returns the name of the collection this index writes to.
func (s *Storage) Collection() string { return s.collection }

var invalidCollectionChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// CollectionName joins base and sessionID into a valid collection name.
func CollectionName(base, sessionID string) string {
	if base == "" {
		base = "ragchat"
	}
	name := base
	if sessionID != "" {
		name = base + "_" + sessionID
	}
	return strings.Trim(invalidCollectionChars.ReplaceAllString(name, "_"), "_")
}

func (s *Storage) Build(ctx context.Context, entries []domain.IndexEntry) error {
	dim, err := vectorstore.ValidateEntries(entries)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		p, err := pointFromEntry(uint64(i), e)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		points[i] = p
	}

	s.built = false
	if err := s.drop(ctx); err != nil {
		return err
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %d points: %w", len(points), err)
	}
	s.dimension = dim
	s.count = len(points)
	s.built = true
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if !s.built {
		return nil, domain.ErrEmptyIndex
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("search: query dimension %d does not match index dimension %d", len(vector), s.dimension)
	}
	if k <= 0 {
		k = vectorstore.DefaultTopK
	}
	// Qdrant breaks score ties arbitrarily, so fetch past k until the
	// k-th score is strictly above the lowest fetched score.
	limit := min(2*k, s.count)
	for {
		results, err := s.query(ctx, vector, limit)
		if err != nil {
			return nil, err
		}
		if len(results) <= k {
			return results, nil
		}
		if limit >= s.count || results[k-1].Score > results[len(results)-1].Score {
			return results[:k], nil
		}
		limit = min(2*limit, s.count)
	}
}

func (s *Storage) query(ctx context.Context, vector []float32, limit int) ([]domain.SearchResult, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query %s: %w", s.collection, err)
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, domain.SearchResult{
			Chunk: chunkFromPayload(p.GetPayload()),
			Score: float64(p.GetScore()),
		})
	}
	vectorstore.SortResults(results)
	return results, nil
}

func (s *Storage) Reset(ctx context.Context) error {
	s.built = false
	s.dimension = 0
	s.count = 0
	return s.drop(ctx)
}

// Close drops the session collection and closes the connection.
func (s *Storage) Close() error {
	dropErr := s.Reset(context.Background())
	if err := s.client.Close(); err != nil {
		return err
	}
	return dropErr
}

func (s *Storage) drop(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant check collection %s: %w", s.collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant delete collection %s: %w", s.collection, err)
	}
	return nil
}

func pointFromEntry(id uint64, e domain.IndexEntry) (*qdrant.PointStruct, error) {
	payload, err := qdrant.TryValueMap(map[string]any{
		"source_id": e.Chunk.SourceID,
		"index":     e.Chunk.Index,
		"text":      e.Chunk.Text,
		"start":     e.Chunk.Start,
		"end":       e.Chunk.End,
		"overlap":   e.Chunk.Overlap,
	})
	if err != nil {
		return nil, fmt.Errorf("payload for chunk %d: %w", e.Chunk.Index, err)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(id),
		Vectors: qdrant.NewVectorsDense(e.Vector),
		Payload: payload,
	}, nil
}

func chunkFromPayload(payload map[string]*qdrant.Value) domain.Chunk {
	return domain.Chunk{
		SourceID: payload["source_id"].GetStringValue(),
		Index:    int(payload["index"].GetIntegerValue()),
		Text:     payload["text"].GetStringValue(),
		Start:    int(payload["start"].GetIntegerValue()),
		End:      int(payload["end"].GetIntegerValue()),
		Overlap:  int(payload["overlap"].GetIntegerValue()),
	}
}
