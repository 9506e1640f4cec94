package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/sermonkb/internal/api"
	"github.com/timmy/sermonkb/internal/api/middleware"
	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/service"
	"github.com/timmy/sermonkb/internal/storage"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH overrides the default config search path in deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	videoRepo := repository.NewVideoRepository(db)
	chunkRepo := repository.NewChunkRepository(db)

	embedder, err := service.NewEmbedder(&cfg.Embedding)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize embedding provider")
	}

	ctx := context.Background()
	searcher := buildSearcher(ctx, cfg, embedder, appLogger)
	if searcher != nil {
		defer searcher.Close()
	}

	retrieval := service.NewRetrievalService(
		embedder,
		searcher,
		chunkRepo,
		videoRepo,
		cfg.Search.DefaultTopK,
		cfg.Search.MaxTopK,
	)
	answer := service.NewAnswerService(&cfg.Chat)

	router := api.SetupRouter(&api.Dependencies{
		VideoRepo: videoRepo,
		ChunkRepo: chunkRepo,
		Retrieval: retrieval,
		Answer:    answer,
		Searcher:  searcher,
		Logger:    appLogger,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// buildSearcher wires the configured vector search backend. A missing or
// mismatched flat index leaves semantic search unavailable rather than
// failing the whole server; keyword search still works.
func buildSearcher(ctx context.Context, cfg *config.Config, embedder service.Embedder, appLogger *logger.Logger) index.Searcher {
	switch cfg.Index.Backend {
	case "qdrant":
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
		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
		}
		return qdrantRepo

	case "flat", "":
		store := index.NewFileStore(cfg.Index.Dir)

		flat, meta, err := store.Load()
		if errors.Is(err, domain.ErrIndexUnavailable) && cfg.Storage.Enabled {
			// Fresh node: try pulling the latest build from object storage
			if restored := restoreFromMirror(ctx, cfg, appLogger); restored {
				flat, meta, err = store.Load()
			}
		}
		if err != nil {
			appLogger.WithError(err).Warn("Vector index not loaded, semantic search disabled")
			return nil
		}

		if meta.Provider != embedder.Name() || meta.Model != embedder.Model() {
			appLogger.WithFields(logger.Fields{
				"index_provider":  meta.Provider,
				"index_model":     meta.Model,
				"config_provider": embedder.Name(),
				"config_model":    embedder.Model(),
			}).Error("Index was built with a different embedding identity, semantic search disabled")
			return nil
		}
		if meta.Dimension != embedder.Dimension() {
			appLogger.WithFields(logger.Fields{
				"index_dimension":  meta.Dimension,
				"config_dimension": embedder.Dimension(),
			}).Error("Index dimension does not match embedding configuration, semantic search disabled")
			return nil
		}

		appLogger.WithFields(logger.Fields{
			"vectors":  flat.Len(),
			"provider": meta.Provider,
			"model":    meta.Model,
		}).Info("Loaded vector index")
		return index.NewFlatSearcher(flat, meta)

	default:
		appLogger.WithError(fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidConfiguration, cfg.Index.Backend)).
			Fatal("Failed to configure vector search")
		return nil
	}
}

func restoreFromMirror(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) bool {
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
		appLogger.WithError(err).Warn("Failed to initialize storage for index restore")
		return false
	}

	mirror := storage.NewArtifactMirror(objectStorage, cfg.Index.Dir, cfg.Storage.Prefix)
	restored, err := mirror.Restore(ctx)
	if err != nil {
		appLogger.WithError(err).Warn("Failed to restore index artifacts")
		return false
	}
	return restored
}
