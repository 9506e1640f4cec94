package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/sermonkb/internal/chunker"
	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/service"
	"github.com/timmy/sermonkb/internal/source"
	"github.com/timmy/sermonkb/internal/source/captions"
	"github.com/timmy/sermonkb/internal/source/localdir"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "sermonkb-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	sourceType := flag.String("source", "captions", "Data source to ingest from (captions, localdir)")
	limit := flag.Int("limit", 0, "Maximum number of videos to ingest (0 = all)")
	force := flag.Bool("force", false, "Refetch transcripts even for videos already ingested")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	videoRepo := repository.NewVideoRepository(db)
	chunkRepo := repository.NewChunkRepository(db)

	splitter, err := chunker.New(chunker.Config{
		Unit:    chunker.Unit(cfg.Chunking.Unit),
		Size:    cfg.Chunking.Size,
		Overlap: cfg.Chunking.Overlap,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid chunking configuration")
	}

	var src source.TranscriptSource
	switch *sourceType {
	case "captions":
		src = captions.NewAdapter(cfg.Sources.Captions.BaseURL, cfg.Sources.Captions.APIKey, cfg.Sources.Captions.PlaylistID)
	case "localdir":
		src = localdir.NewAdapter(cfg.Sources.LocalDir.Path)
	default:
		appLogger.WithField("source", *sourceType).Fatal("Unknown source type")
	}

	ingestService := service.NewIngestService(
		videoRepo,
		chunkRepo,
		splitter,
		appLogger,
		cfg.Ingest.Workers,
		cfg.Ingest.BatchSize,
		cfg.Ingest.RateLimit,
		cfg.Ingest.RateBurst,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	stats, err := ingestService.IngestFromSource(ctx, src, *limit, &service.IngestOptions{
		Force: *force,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to ingest from source")
	}
	appLogger.WithFields(logger.Fields{
		"total":    stats.TotalItems,
		"skipped":  stats.SkippedItems,
		"disabled": stats.DisabledItems,
		"failed":   stats.FailedItems,
	}).Info("Ingestion completed")
}
