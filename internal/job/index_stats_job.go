package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/model"
)

type statsReader interface {
	Stats(ctx context.Context) (*model.IndexStats, error)
}

// IndexStatsJob logs a snapshot of the vector index.
type IndexStatsJob struct {
	stats     statsReader
	indexName string
}

func NewIndexStatsJob(stats statsReader, indexName string) *IndexStatsJob {
	return &IndexStatsJob{stats: stats, indexName: indexName}
}

func (j *IndexStatsJob) Name() string {
	return "index_stats_report"
}

func (j *IndexStatsJob) Run(ctx context.Context) error {
	stats, err := j.stats.Stats(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("vector index stats",
		zap.String("index", j.indexName),
		zap.Int64("total_vectors", stats.TotalVectorCount),
		zap.Float64("fullness", stats.IndexFullness),
		zap.Int("dimension", stats.Dimension),
		zap.Int("namespaces", len(stats.Namespaces)),
	)
	return nil
}
