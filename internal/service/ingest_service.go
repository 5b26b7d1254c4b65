package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/caseindex/internal/ai"
	"github.com/xxxsen/caseindex/internal/chunker"
	"github.com/xxxsen/caseindex/internal/extract"
	"github.com/xxxsen/caseindex/internal/model"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
	"github.com/xxxsen/caseindex/internal/vectorstore"
)

const defaultContentType = "application/octet-stream"

// BlobUploader stores the original upload. *filestore.Uploader implements it.
type BlobUploader interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

type IngestConfig struct {
	SupportedExtensions []string
	MaxBytes            int64
	Concurrency         int
	Now                 func() time.Time
	NewID               func() string
}

type IngestService struct {
	chunker     *chunker.Chunker
	embedder    ai.IEmbedder
	store       vectorstore.Store
	blobs       BlobUploader
	supported   map[string]struct{}
	maxBytes    int64
	concurrency int
	now         func() time.Time
	newID       func() string
}

// NewIngestService wires the pipeline. blobs may be nil, in which case every
// ingestion reports the blob phase as unavailable.
func NewIngestService(c *chunker.Chunker, embedder ai.IEmbedder, store vectorstore.Store, blobs BlobUploader, cfg IngestConfig) *IngestService {
	supported := make(map[string]struct{}, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		supported[extract.NormalizeExt(ext)] = struct{}{}
	}
	s := &IngestService{
		chunker:     c,
		embedder:    embedder,
		store:       store,
		blobs:       blobs,
		supported:   supported,
		maxBytes:    cfg.MaxBytes,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *IngestService) SupportedExtensions() []string {
	out := make([]string, 0, len(s.supported))
	for ext := range s.supported {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Ingest indexes one upload. Validation failures touch no backend. The blob
// phase runs only after every chunk is written and never fails the call.
func (s *IngestService) Ingest(ctx context.Context, up model.Upload) (*model.IngestResult, error) {
	fileType := extract.FileType(up.Filename)
	if _, ok := s.supported[fileType]; !ok {
		return nil, fmt.Errorf("%w: %q, supported: %s", appErr.ErrUnsupportedFileType, fileType, strings.Join(s.SupportedExtensions(), ", "))
	}
	caseID := strings.TrimSpace(up.CaseID)
	if caseID == "" {
		return nil, appErr.ErrMissingCaseID
	}
	if s.maxBytes > 0 && int64(len(up.Data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", appErr.ErrFileTooLarge, len(up.Data), s.maxBytes)
	}
	caseDocumentID := strings.TrimSpace(up.CaseDocumentID)
	logger := logutil.GetLogger(ctx).With(
		zap.String("filename", up.Filename),
		zap.String("case_id", caseID),
		zap.String("case_document_id", caseDocumentID),
	)

	text, err := extract.Extract(ctx, up.Data, fileType)
	if err != nil {
		logger.Error("extract text failed", zap.Error(err))
		return nil, err
	}
	spans := s.chunker.Chunk(ctx, text)
	if len(spans) == 0 {
		logger.Error("document produced no chunks")
		return nil, appErr.ErrEmptyDocument
	}

	vectors, err := s.embedAll(ctx, spans)
	if err != nil {
		logger.Error("embed chunks failed", zap.Int("chunks", len(spans)), zap.Error(err))
		return nil, err
	}

	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	metadata := model.ChunkMetadata{
		Filename:        up.Filename,
		FileType:        fileType,
		UploadTimestamp: timestamp,
		CaseID:          caseID,
		CaseDocumentID:  caseDocumentID,
	}
	records := make([]model.ChunkRecord, 0, len(spans))
	for i, span := range spans {
		records = append(records, model.ChunkRecord{
			ID:         s.newID(),
			ChunkIndex: span.Index,
			Text:       span.Text,
			Embedding:  vectors[i],
			Metadata:   metadata,
		})
	}
	if err := s.store.Upsert(ctx, records...); err != nil {
		logger.Error("upsert chunks failed", zap.Int("chunks", len(records)), zap.Error(err))
		return nil, appErr.VectorStore(err)
	}
	logger.Info("document indexed", zap.Int("chunks", len(records)), zap.String("upload_timestamp", timestamp))

	result := &model.IngestResult{
		Message:            "File uploaded and processed successfully",
		Indexed:            true,
		Filename:           up.Filename,
		FileType:           fileType,
		CaseID:             caseID,
		CaseDocumentID:     caseDocumentID,
		UploadTimestamp:    timestamp,
		DocumentsProcessed: 1,
		ChunksCreated:      len(records),
	}
	s.storeBlob(ctx, up, result)
	return result, nil
}

// embedAll embeds every span before anything is written, so a failure
// leaves the index untouched.
func (s *IngestService) embedAll(ctx context.Context, spans []chunker.Span) ([][]float32, error) {
	vectors := make([][]float32, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range spans {
		i := i
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, spans[i].Text, ai.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErr.Embedding(err)
	}
	return vectors, nil
}

func (s *IngestService) storeBlob(ctx context.Context, up model.Upload, result *model.IngestResult) {
	logger := logutil.GetLogger(ctx).With(zap.String("filename", up.Filename))
	if s.blobs == nil {
		result.BlobError = "blob storage not configured"
		result.Warning = "Document processed successfully but blob storage is not configured"
		logger.Warn("blob storage not configured, original file not kept")
		return
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	url, err := s.blobs.Upload(ctx, up.Data, up.Filename, contentType)
	if err != nil {
		cause := appErr.CauseText(err)
		result.BlobError = cause
		result.Warning = "Document processed successfully but S3 upload failed: " + cause
		logger.Warn("blob upload failed, chunks stay indexed", zap.Error(err))
		return
	}
	result.BlobURL = &url
}
