package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/service"
	"github.com/timmy/sermonkb/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "sermonkb-indexer",
	})
	logger.SetDefaultLogger(appLogger)

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

	chunkRepo := repository.NewChunkRepository(db)
	embedRepo := repository.NewEmbeddingRepository(db)

	embedder, err := service.NewEmbedder(&cfg.Embedding)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}

	store := index.NewFileStore(cfg.Index.Dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	var sink service.VectorSink
	if cfg.Index.Backend == "qdrant" {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Index.Qdrant.Host,
			Port:            cfg.Index.Qdrant.Port,
			Collection:      cfg.Index.Qdrant.Collection,
			APIKey:          cfg.Index.Qdrant.APIKey,
			UseTLS:          cfg.Index.Qdrant.UseTLS,
			VectorDimension: embedder.Dimension(),
			Provider:        embedder.Name(),
			Model:           embedder.Model(),
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize Qdrant")
		}
		defer qdrantRepo.Close()
		sink = qdrantRepo
	}

	var publisher service.ArtifactPublisher
	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(&storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		publisher = storage.NewArtifactMirror(objectStorage, cfg.Index.Dir, cfg.Storage.Prefix)
	}

	indexer := service.NewIndexerService(chunkRepo, embedRepo, embedder, store, sink, publisher, appLogger)

	stats, err := indexer.Rebuild(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Index rebuild failed")
	}
	appLogger.WithFields(logger.Fields{
		"chunks":     stats.Chunks,
		"embedded":   stats.Embedded,
		"cache_hits": stats.CacheHits,
		"purged":     stats.PurgedCache,
		"dimension":  stats.Dimension,
	}).Info("Index rebuild finished")
}
