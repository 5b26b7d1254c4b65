package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

type memoryConfig struct {
	Capacity int64 `json:"capacity"`
	PageSize int   `json:"page_size"`
}

type memoryEntry struct {
	seq    int64
	record model.ChunkRecord
	norm   float64
}

// memoryStore keeps everything in process and scores by brute-force cosine.
type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	namespace string
	capacity  int64
	pageSize  int
	seq       int64
	entries   map[string]*memoryEntry

	// pageHook runs before every page read; tests use it to inject failures.
	pageHook func(afterID string) error
}

func init() {
	Register("memory", createMemoryStore)
}

func createMemoryStore(args Args) (Store, error) {
	cfg := &memoryConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	return NewMemory(args.Dimension, args.Namespace, cfg.Capacity, cfg.PageSize), nil
}

// NewMemory returns an in-process store. capacity only feeds index_fullness;
// zero means unbounded.
func NewMemory(dimension int, namespace string, capacity int64, pageSize int) Store {
	return newMemoryStore(dimension, namespace, capacity, pageSize)
}

func newMemoryStore(dimension int, namespace string, capacity int64, pageSize int) *memoryStore {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &memoryStore{
		dimension: dimension,
		namespace: namespace,
		capacity:  capacity,
		pageSize:  pageSize,
		entries:   make(map[string]*memoryEntry),
	}
}

func (s *memoryStore) Upsert(ctx context.Context, records ...model.ChunkRecord) error {
	if err := validateRecords(s.dimension, records); err != nil {
		return appErr.VectorStore(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return appErr.VectorStore(err)
	}
	for _, rec := range records {
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		if cur, ok := s.entries[rec.ID]; ok {
			cur.record = rec
			cur.norm = vectorNorm(rec.Embedding)
			continue
		}
		s.seq++
		s.entries[rec.ID] = &memoryEntry{seq: s.seq, record: rec, norm: vectorNorm(rec.Embedding)}
	}
	return nil
}

func (s *memoryStore) Query(ctx context.Context, vector []float32, topK int, filter *model.Filter) ([]model.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErr.VectorStore(err)
	}
	if topK <= 0 {
		return []model.ScoredChunk{}, nil
	}
	qnorm := vectorNorm(vector)
	type candidate struct {
		entry *memoryEntry
		score float64
	}
	s.mu.RLock()
	candidates := make([]candidate, 0, len(s.entries))
	for _, e := range s.entries {
		if filter != nil && !filter.Match(e.record.Metadata) {
			continue
		}
		candidates = append(candidates, candidate{entry: e, score: cosineScore(vector, qnorm, e.record.Embedding, e.norm)})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.entry.seq != b.entry.seq {
			return a.entry.seq < b.entry.seq
		}
		return a.entry.record.ID < b.entry.record.ID
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]model.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		rec := c.entry.record
		out = append(out, model.ScoredChunk{
			ID:         rec.ID,
			ChunkIndex: rec.ChunkIndex,
			Text:       rec.Text,
			Score:      c.score,
			Metadata:   rec.Metadata,
		})
	}
	return out, nil
}

func (s *memoryStore) FetchByMetadata(ctx context.Context, filter model.Filter) ([]model.ChunkRecord, error) {
	res, err := fetchAll(ctx, s.pageSize, func(ctx context.Context, afterID string, limit int) ([]model.ChunkRecord, error) {
		return s.page(filter, afterID, limit)
	})
	if err != nil {
		return nil, appErr.VectorStore(err)
	}
	return res, nil
}

func (s *memoryStore) page(filter model.Filter, afterID string, limit int) ([]model.ChunkRecord, error) {
	if s.pageHook != nil {
		if err := s.pageHook(afterID); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if id > afterID && filter.Match(e.record.Metadata) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		rec := s.entries[id].record
		rec.Embedding = nil
		out = append(out, rec)
	}
	return out, nil
}

func (s *memoryStore) Stats(ctx context.Context) (*model.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErr.VectorStore(err)
	}
	s.mu.RLock()
	total := int64(len(s.entries))
	s.mu.RUnlock()
	stats := &model.IndexStats{
		TotalVectorCount: total,
		Dimension:        s.dimension,
		Namespaces:       map[string]model.NamespaceStats{},
	}
	if total > 0 {
		stats.Namespaces[s.namespace] = model.NamespaceStats{VectorCount: total}
	}
	if s.capacity > 0 {
		stats.IndexFullness = float64(total) / float64(s.capacity)
	}
	return stats, nil
}

func (s *memoryStore) Close() error {
	return nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosineScore(q []float32, qnorm float64, v []float32, vnorm float64) float64 {
	if qnorm == 0 || vnorm == 0 {
		return distanceToScore(1)
	}
	n := len(q)
	if len(v) < n {
		n = len(v)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(q[i]) * float64(v[i])
	}
	return distanceToScore(1 - dot/(qnorm*vnorm))
}
