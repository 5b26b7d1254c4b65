package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/ai"
	"github.com/xxxsen/caseindex/internal/chunker"
	"github.com/xxxsen/caseindex/internal/config"
	"github.com/xxxsen/caseindex/internal/db"
	"github.com/xxxsen/caseindex/internal/embedcache"
	"github.com/xxxsen/caseindex/internal/filestore"
	"github.com/xxxsen/caseindex/internal/handler"
	"github.com/xxxsen/caseindex/internal/job"
	"github.com/xxxsen/caseindex/internal/middleware"
	"github.com/xxxsen/caseindex/internal/repo"
	"github.com/xxxsen/caseindex/internal/schedule"
	"github.com/xxxsen/caseindex/internal/service"
	"github.com/xxxsen/caseindex/internal/vectorstore"
)

type app struct {
	db        *sql.DB
	store     vectorstore.Store
	cacheRepo *repo.EmbeddingCacheRepo
	ingest    *service.IngestService
	retrieval *service.RetrievalService
}

func (r *app) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func buildEmbedder(cfg config.EmbeddingConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	provider, err := ai.NewEmbedProvider(cfg.Provider, ai.ProviderArgs{Dimension: cfg.Dimension, Model: cfg.Model, Data: cfg.Data})
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	e := ai.NewEmbedder(provider, cfg.Model)
	e = embedcache.WrapThrottleToEmbedder(e, cfg.RateLimit)
	if cacheRepo != nil {
		e = embedcache.WrapDBCacheToEmbedder(e, cacheRepo)
	}
	e = embedcache.WrapLruCacheToEmbedder(e, cfg.CacheSize, seconds(cfg.CacheTTLSeconds))
	return ai.NewCheckedEmbedder(e, cfg.Dimension, seconds(cfg.TimeoutSeconds)), nil
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*app, error) {
	rt := &app{}
	if cfg.Database.Configured() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		rt.db = conn
		if err := db.ApplyMigrations(conn); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		if cfg.Embedding.DBCache {
			rt.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
		}
	}

	embedder, err := buildEmbedder(cfg.Embedding, rt.cacheRepo)
	if err != nil {
		rt.Close()
		return nil, err
	}
	store, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimension, rt.db)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	rt.store = store

	var blobs service.BlobUploader
	if cfg.FileStore.Type != "" {
		fs, err := filestore.New(cfg.FileStore)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("init file store: %w", err)
		}
		blobs = filestore.NewUploader(fs, seconds(cfg.FileStore.TimeoutSeconds))
	} else {
		logutil.GetLogger(ctx).Warn("file_store not configured, original uploads will not be kept")
	}

	c, err := chunker.New(chunker.Config{MaxTokens: cfg.Chunk.MaxTokens, OverlapTokens: cfg.Chunk.OverlapTokens})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.ingest = service.NewIngestService(c, embedder, store, blobs, service.IngestConfig{
		SupportedExtensions: cfg.Upload.SupportedExtensions,
		MaxBytes:            cfg.Upload.MaxBytes,
		Concurrency:         cfg.Embedding.Concurrency,
	})
	rt.retrieval = service.NewRetrievalService(store, embedder, service.RetrievalConfig{Dimension: cfg.Embedding.Dimension})
	return rt, nil
}

func buildScheduler(cfg *config.Config, rt *app) (*schedule.CronScheduler, error) {
	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.EmbeddingCacheCleanup != "" && rt.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(rt.cacheRepo, cfg.Jobs.EmbeddingCacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.EmbeddingCacheCleanup); err != nil {
			return nil, err
		}
	}
	if cfg.Jobs.IndexStatsReport != "" {
		report := job.NewIndexStatsJob(rt.retrieval, cfg.VectorStore.IndexName)
		if err := scheduler.AddJob(report, cfg.Jobs.IndexStatsReport); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func runServer(cfg *config.Config) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Embedding.ValidateOnStart {
		if err := rt.retrieval.ValidateDimension(ctx); err != nil {
			return fmt.Errorf("validate embedding dimension: %w", err)
		}
	}

	scheduler, err := buildScheduler(cfg, rt)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Upload: handler.NewUploadHandler(rt.ingest, cfg.Upload.MaxBytes),
		Query:  handler.NewQueryHandler(rt.retrieval),
		Index:  handler.NewIndexHandler(rt.retrieval, cfg.VectorStore.IndexName),
	}
	engine, err := webapi.NewEngine(
		"",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
