package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guardrag/internal/config"
	"guardrag/internal/embedding"
	"guardrag/internal/ingest"
	"guardrag/internal/logging"
)

var ingestDocType string

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load documents from a directory into the index",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.CloseAll()

		dir := cfg.Ingest.WatchDir
		if len(args) > 0 {
			dir = args[0]
		}

		ingestor, cleanup, err := buildIngestor(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := ingestor.IngestDir(context.Background(), dir)
		if err != nil {
			return err
		}
		fmt.Printf("ingested %d files (%d chunks), skipped %d, %d errors\n",
			stats.Files, stats.Chunks, stats.Skipped, stats.Errors)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and ingest files as they change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logging.CloseAll()

		dir := cfg.Ingest.WatchDir
		if len(args) > 0 {
			dir = args[0]
		}

		ingestor, cleanup, err := buildIngestor(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		// Catch up on whatever is already there, then watch.
		if stats, err := ingestor.IngestDir(context.Background(), dir); err == nil {
			fmt.Printf("initial scan: %d files, %d chunks\n", stats.Files, stats.Chunks)
		}

		watcher, err := ingest.NewWatcher(ingestor, dir, cfg.GetDebounceInterval())
		if err != nil {
			return err
		}
		if err := watcher.Start(context.Background()); err != nil {
			return err
		}
		defer watcher.Stop()

		fmt.Printf("watching %s (ctrl-c to stop)\n", dir)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "", "doc_type stamped on ingested documents (default from config)")
}

func buildIngestor(cfg *config.Config) (*ingest.Ingestor, func(), error) {
	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.BaseURL,
		OllamaModel:    cfg.Embedding.Model,
		GeminiAPIKey:   cfg.Embedding.APIKey,
		GeminiModel:    cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding engine: %w", err)
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, nil, err
	}

	docType := cfg.Ingest.DefaultDocType
	if ingestDocType != "" {
		docType = ingestDocType
	}
	ingestor := ingest.NewIngestor(embedder, idx, cfg.Ingest.Extensions, docType)
	cleanup := func() {
		if err := idx.Close(); err != nil {
			logging.Boot("closing index: %v", err)
		}
	}
	return ingestor, cleanup, nil
}
