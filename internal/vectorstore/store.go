package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/caseindex/internal/config"
	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

const defaultPageSize = 1000

// Store is the vector index contract. Implementations return errors that
// match appErr.ErrVectorStore.
type Store interface {
	// Upsert writes all records or none of them. Existing ids are overwritten.
	Upsert(ctx context.Context, records ...model.ChunkRecord) error
	// Query returns up to topK records by descending score in [0,1].
	Query(ctx context.Context, vector []float32, topK int, filter *model.Filter) ([]model.ScoredChunk, error)
	// FetchByMetadata returns every record matching filter, without embeddings.
	FetchByMetadata(ctx context.Context, filter model.Filter) ([]model.ChunkRecord, error)
	Stats(ctx context.Context) (*model.IndexStats, error)
	Close() error
}

type Args struct {
	IndexName string
	Namespace string
	Dimension int
	DB        *sql.DB
	Data      interface{}
}

type Factory func(args Args) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds the configured store and bounds each of its calls by the
// configured timeout.
func New(cfg config.VectorStoreConfig, dimension int, db *sql.DB) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	store, err := factory(Args{
		IndexName: cfg.IndexName,
		Namespace: cfg.Namespace,
		Dimension: dimension,
		DB:        db,
		Data:      cfg.Data,
	})
	if err != nil {
		return nil, err
	}
	return WithTimeout(store, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on next. A zero timeout returns next as is.
func WithTimeout(next Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: timeout}
}

func (s *timeoutStore) Upsert(ctx context.Context, records ...model.ChunkRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return appErr.VectorStore(s.next.Upsert(ctx, records...))
}

func (s *timeoutStore) Query(ctx context.Context, vector []float32, topK int, filter *model.Filter) ([]model.ScoredChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.next.Query(ctx, vector, topK, filter)
	return res, appErr.VectorStore(err)
}

func (s *timeoutStore) FetchByMetadata(ctx context.Context, filter model.Filter) ([]model.ChunkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.next.FetchByMetadata(ctx, filter)
	return res, appErr.VectorStore(err)
}

func (s *timeoutStore) Stats(ctx context.Context) (*model.IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.next.Stats(ctx)
	return res, appErr.VectorStore(err)
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

// pageFunc returns up to limit matching records with id > afterID, ordered by id.
type pageFunc func(ctx context.Context, afterID string, limit int) ([]model.ChunkRecord, error)

// fetchAll walks pages until a short page and stitches them together. A
// failing page aborts the whole walk.
func fetchAll(ctx context.Context, pageSize int, fetch pageFunc) ([]model.ChunkRecord, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	out := make([]model.ChunkRecord, 0)
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, afterID, pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page after %q: %w", afterID, err)
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		afterID = page[len(page)-1].ID
	}
}

func validateRecords(dimension int, records []model.ChunkRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if _, ok := seen[rec.ID]; ok {
			return fmt.Errorf("duplicate record id %s in one upsert", rec.ID)
		}
		seen[rec.ID] = struct{}{}
		if dimension > 0 && len(rec.Embedding) != dimension {
			return fmt.Errorf("record %s: dimension mismatch: got %d, want %d", rec.ID, len(rec.Embedding), dimension)
		}
	}
	return nil
}

// distanceToScore maps cosine distance in [0,2] to a similarity in [0,1].
func distanceToScore(distance float64) float64 {
	score := 1 - distance/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}
