package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/caseindex/internal/chunker"
	"github.com/xxxsen/caseindex/internal/config"
	"github.com/xxxsen/caseindex/internal/extract"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caseindex",
		Short: "case document indexing and retrieval service",
	}
	rootCmd.AddCommand(newRunCmd(), newChunkCmd(), newStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (json or yaml)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "print vector index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			stats, err := rt.retrieval.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"index_name": cfg.VectorStore.IndexName,
				"stats":      stats,
			})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (json or yaml)")
	return cmd
}

// chunk runs extraction and chunking locally without touching any backend.
func newChunkCmd() *cobra.Command {
	var (
		file      string
		maxTokens int
		overlap   int
	)
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "extract a file and report how it would be chunked",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			c, err := chunker.New(chunker.Config{MaxTokens: maxTokens, OverlapTokens: overlap})
			if err != nil {
				return err
			}
			text, err := extract.Extract(cmd.Context(), data, extract.FileType(file))
			if err != nil {
				return err
			}
			spans := c.Chunk(cmd.Context(), text)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file: %s\ntokens: %d\nchunks: %d\n", file, chunker.CountTokens(text), len(spans))
			for _, span := range spans {
				fmt.Fprintf(out, "  #%d tokens [%d, %d) chars=%d\n", span.Index, span.Start, span.End, len(span.Text))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "document to chunk")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", chunker.DefaultMaxTokens, "maximum tokens per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", chunker.DefaultOverlapTokens, "tokens shared by adjacent chunks")
	return cmd
}
