package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/ai"
	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/vectorstore"
)

const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 50
)

const dimensionProbeText = "dimension probe"

type RetrievalConfig struct {
	Dimension int
}

type RetrievalService struct {
	store     vectorstore.Store
	embedder  ai.IEmbedder
	dimension int
}

func NewRetrievalService(store vectorstore.Store, embedder ai.IEmbedder, cfg RetrievalConfig) *RetrievalService {
	return &RetrievalService{store: store, embedder: embedder, dimension: cfg.Dimension}
}

type documentKey struct {
	filename        string
	uploadTimestamp string
	caseDocumentID  string
}

// GetDocuments rebuilds every document of a case. Chunks of one document are
// joined in chunk_index order with no separator, so overlapping tokens
// appear twice.
func (s *RetrievalService) GetDocuments(ctx context.Context, caseID, caseDocumentID string) (*model.DocumentBundle, error) {
	caseID = strings.TrimSpace(caseID)
	caseDocumentID = strings.TrimSpace(caseDocumentID)
	if caseID == "" {
		return nil, appErr.ErrMissingCaseID
	}
	filter := model.Filter{CaseID: caseID, CaseDocumentID: caseDocumentID}
	records, err := s.store.FetchByMetadata(ctx, filter)
	if err != nil {
		logutil.GetLogger(ctx).Error("fetch case chunks failed", zap.String("case_id", caseID), zap.Error(err))
		return nil, appErr.VectorStore(err)
	}

	groups := make(map[documentKey][]model.ChunkRecord)
	for _, rec := range records {
		if !filter.Match(rec.Metadata) {
			continue
		}
		key := documentKey{
			filename:        rec.Metadata.Filename,
			uploadTimestamp: rec.Metadata.UploadTimestamp,
			caseDocumentID:  rec.Metadata.CaseDocumentID,
		}
		groups[key] = append(groups[key], rec)
	}

	docs := make([]model.Document, 0, len(groups))
	for key, chunks := range groups {
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].ChunkIndex < chunks[j].ChunkIndex
		})
		var sb strings.Builder
		for _, c := range chunks {
			sb.WriteString(c.Text)
		}
		docs = append(docs, model.Document{
			Filename:        key.filename,
			Content:         sb.String(),
			CaseID:          caseID,
			CaseDocumentID:  key.caseDocumentID,
			ChunkCount:      len(chunks),
			UploadTimestamp: key.uploadTimestamp,
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.UploadTimestamp != b.UploadTimestamp {
			return a.UploadTimestamp < b.UploadTimestamp
		}
		return a.CaseDocumentID < b.CaseDocumentID
	})
	logutil.GetLogger(ctx).Debug("case documents rebuilt",
		zap.String("case_id", caseID),
		zap.Int("chunks", len(records)),
		zap.Int("documents", len(docs)),
	)
	return &model.DocumentBundle{
		CaseID:         caseID,
		CaseDocumentID: caseDocumentID,
		Documents:      docs,
		Markdown:       RenderMarkdown(docs),
		TotalDocuments: len(docs),
	}, nil
}

// RenderMarkdown emits "# filename\n\n{content}\n\n---\n\n" per document.
func RenderMarkdown(docs []model.Document) string {
	var sb strings.Builder
	for _, d := range docs {
		sb.WriteString("# ")
		sb.WriteString(d.Filename)
		sb.WriteString("\n\n")
		sb.WriteString(d.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// Query embeds q and returns the store's ranking as is.
func (s *RetrievalService) Query(ctx context.Context, q string, limit int, filter *model.Filter) (*model.QueryResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, appErr.ErrEmptyQuery
	}
	if limit < 1 || limit > MaxQueryLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", appErr.ErrInvalidLimit, limit, MaxQueryLimit)
	}
	if filter != nil && filter.CaseID == "" && filter.CaseDocumentID == "" {
		filter = nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", q), zap.Int("limit", limit))
	vec, err := s.embedder.Embed(ctx, q, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return nil, appErr.Embedding(err)
	}
	results, err := s.store.Query(ctx, vec, limit, filter)
	if err != nil {
		logger.Error("vector query failed", zap.Error(err))
		return nil, appErr.VectorStore(err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return &model.QueryResult{
		Query:        q,
		Results:      results,
		TotalResults: len(results),
	}, nil
}

func (s *RetrievalService) Stats(ctx context.Context) (*model.IndexStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, appErr.VectorStore(err)
	}
	return stats, nil
}

// ValidateDimension embeds a probe text and checks the vector length against
// the configured dimension and the index dimension.
func (s *RetrievalService) ValidateDimension(ctx context.Context) error {
	vec, err := s.embedder.Embed(ctx, dimensionProbeText, ai.TaskRetrievalDocument)
	if err != nil {
		return appErr.Embedding(err)
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: model=%d, configured=%d", len(vec), s.dimension)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.Dimension > 0 && stats.Dimension != len(vec) {
		return fmt.Errorf("embedding dimension mismatch: model=%d, index=%d", len(vec), stats.Dimension)
	}
	logutil.GetLogger(ctx).Info("embedding dimensions validated",
		zap.Int("dimension", len(vec)),
		zap.Int64("total_vectors", stats.TotalVectorCount),
	)
	return nil
}
