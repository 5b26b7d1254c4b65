package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/model"
	"github.com/xxxsen/caseindex/internal/pkg/dbutil"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

var (
	identRegex   = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	nonIdentChar = regexp.MustCompile(`[^a-z0-9_]+`)
)

var chunkFields = []string{"id", "chunk_index", "content", "filename", "file_type", "upload_timestamp", "case_id", "case_document_id"}

type pgvectorConfig struct {
	Table    string `json:"table"`
	Capacity int64  `json:"capacity"`
	PageSize int    `json:"page_size"`
}

type pgvectorStore struct {
	db        *sql.DB
	table     string
	namespace string
	dimension int
	capacity  int64
	pageSize  int
}

func init() {
	Register("pgvector", createPgvectorStore)
}

func createPgvectorStore(args Args) (Store, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if args.DB == nil {
		return nil, fmt.Errorf("pgvector store requires a database connection")
	}
	if args.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector store requires a positive dimension")
	}
	table := cfg.Table
	if table == "" {
		table = tableNameFor(args.IndexName)
	}
	if !identRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid pgvector table name: %q", table)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	store := &pgvectorStore{
		db:        args.DB,
		table:     table,
		namespace: args.Namespace,
		dimension: args.Dimension,
		capacity:  cfg.Capacity,
		pageSize:  pageSize,
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func tableNameFor(indexName string) string {
	name := nonIdentChar.ReplaceAllString(strings.ToLower(indexName), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "case_chunks"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

func (s *pgvectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_type TEXT NOT NULL,
			upload_timestamp TEXT NOT NULL,
			case_id TEXT NOT NULL,
			case_document_id TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_case_idx ON %s (namespace, case_id, case_document_id, id)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return appErr.VectorStore(fmt.Errorf("init pgvector schema: %w", err))
		}
	}
	return nil
}

func (s *pgvectorStore) Upsert(ctx context.Context, records ...model.ChunkRecord) error {
	if err := validateRecords(s.dimension, records); err != nil {
		return appErr.VectorStore(err)
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return appErr.VectorStore(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, namespace, chunk_index, content, filename, file_type, upload_timestamp, case_id, case_document_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			filename = EXCLUDED.filename,
			file_type = EXCLUDED.file_type,
			upload_timestamp = EXCLUDED.upload_timestamp,
			case_id = EXCLUDED.case_id,
			case_document_id = EXCLUDED.case_document_id,
			embedding = EXCLUDED.embedding`, s.table))
	if err != nil {
		return appErr.VectorStore(fmt.Errorf("prepare upsert: %w", err))
	}
	defer stmt.Close()
	for _, rec := range records {
		md := rec.Metadata
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			s.namespace,
			rec.ChunkIndex,
			rec.Text,
			md.Filename,
			md.FileType,
			md.UploadTimestamp,
			md.CaseID,
			md.CaseDocumentID,
			pgvector.NewVector(rec.Embedding),
		); err != nil {
			return appErr.VectorStore(fmt.Errorf("upsert %s: %w", rec.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return appErr.VectorStore(fmt.Errorf("commit upsert: %w", err))
	}
	logutil.GetLogger(ctx).Debug("pgvector upsert done", zap.String("table", s.table), zap.Int("count", len(records)))
	return nil
}

// queryTieMargin extra rows are fetched past topK so equal distances at the
// cut can be ordered by insertion sequence.
const queryTieMargin = 16

type rankedChunk struct {
	chunk    model.ScoredChunk
	distance float64
	seq      int64
}

// rankByDistance orders candidates by distance, then seq, then id, and keeps
// the first topK.
func rankByDistance(items []rankedChunk, topK int) []model.ScoredChunk {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.chunk.ID < b.chunk.ID
	})
	if len(items) > topK {
		items = items[:topK]
	}
	out := make([]model.ScoredChunk, 0, len(items))
	for _, item := range items {
		item.chunk.Score = distanceToScore(item.distance)
		out = append(out, item.chunk)
	}
	return out
}

// Query orders by the bare distance operator so the hnsw index serves the
// scan; tie-breaking happens on the fetched candidates.
func (s *pgvectorStore) Query(ctx context.Context, vector []float32, topK int, filter *model.Filter) ([]model.ScoredChunk, error) {
	if topK <= 0 {
		return []model.ScoredChunk{}, nil
	}
	conds := []string{"namespace = $2"}
	args := []interface{}{pgvector.NewVector(vector), s.namespace}
	if filter != nil && filter.CaseID != "" {
		args = append(args, filter.CaseID)
		conds = append(conds, fmt.Sprintf("case_id = $%d", len(args)))
	}
	if filter != nil && filter.CaseDocumentID != "" {
		args = append(args, filter.CaseDocumentID)
		conds = append(conds, fmt.Sprintf("case_document_id = $%d", len(args)))
	}
	args = append(args, topK+queryTieMargin)
	query := fmt.Sprintf(`
		SELECT %s, seq, embedding <=> $1 AS distance
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, strings.Join(chunkFields, ", "), s.table, strings.Join(conds, " AND "), len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, appErr.VectorStore(fmt.Errorf("query vectors: %w", err))
	}
	defer rows.Close()
	candidates := make([]rankedChunk, 0, topK+queryTieMargin)
	for rows.Next() {
		var item rankedChunk
		md := &item.chunk.Metadata
		if err := rows.Scan(&item.chunk.ID, &item.chunk.ChunkIndex, &item.chunk.Text, &md.Filename, &md.FileType, &md.UploadTimestamp, &md.CaseID, &md.CaseDocumentID, &item.seq, &item.distance); err != nil {
			return nil, appErr.VectorStore(err)
		}
		candidates = append(candidates, item)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.VectorStore(err)
	}
	return rankByDistance(candidates, topK), nil
}

func (s *pgvectorStore) FetchByMetadata(ctx context.Context, filter model.Filter) ([]model.ChunkRecord, error) {
	res, err := fetchAll(ctx, s.pageSize, func(ctx context.Context, afterID string, limit int) ([]model.ChunkRecord, error) {
		return s.page(ctx, filter, afterID, limit)
	})
	if err != nil {
		return nil, appErr.VectorStore(err)
	}
	return res, nil
}

func (s *pgvectorStore) page(ctx context.Context, filter model.Filter, afterID string, limit int) ([]model.ChunkRecord, error) {
	where := map[string]interface{}{
		"namespace": s.namespace,
		"_orderby":  "id asc",
		"_limit":    []uint{0, uint(limit)},
	}
	if filter.CaseID != "" {
		where["case_id"] = filter.CaseID
	}
	if filter.CaseDocumentID != "" {
		where["case_document_id"] = filter.CaseDocumentID
	}
	if afterID != "" {
		where["id >"] = afterID
	}
	sqlStr, args, err := builder.BuildSelect(s.table, where, chunkFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ChunkRecord, 0, limit)
	for rows.Next() {
		var rec model.ChunkRecord
		md := &rec.Metadata
		if err := rows.Scan(&rec.ID, &rec.ChunkIndex, &rec.Text, &md.Filename, &md.FileType, &md.UploadTimestamp, &md.CaseID, &md.CaseDocumentID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgvectorStore) Stats(ctx context.Context) (*model.IndexStats, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT namespace, COUNT(*) FROM %s GROUP BY namespace`, s.table))
	if err != nil {
		return nil, appErr.VectorStore(fmt.Errorf("read stats: %w", err))
	}
	defer rows.Close()
	stats := &model.IndexStats{
		Dimension:  s.dimension,
		Namespaces: map[string]model.NamespaceStats{},
	}
	for rows.Next() {
		var (
			ns    string
			count int64
		)
		if err := rows.Scan(&ns, &count); err != nil {
			return nil, appErr.VectorStore(err)
		}
		stats.Namespaces[ns] = model.NamespaceStats{VectorCount: count}
		stats.TotalVectorCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.VectorStore(err)
	}
	if s.capacity > 0 {
		stats.IndexFullness = float64(stats.TotalVectorCount) / float64(s.capacity)
	}
	return stats, nil
}

// Close leaves the shared *sql.DB open; its owner closes it.
func (s *pgvectorStore) Close() error {
	return nil
}
