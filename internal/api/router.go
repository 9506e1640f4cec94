package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/sermonkb/internal/api/handler"
	"github.com/timmy/sermonkb/internal/api/middleware"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/service"
)

// Dependencies holds everything the router needs.
type Dependencies struct {
	VideoRepo *repository.VideoRepository
	ChunkRepo *repository.ChunkRepository
	Retrieval *service.RetrievalService
	Answer    *service.AnswerService
	Searcher  index.Searcher
	Logger    *logger.Logger
	CORS      middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(deps *Dependencies, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler(deps.Searcher)
	searchHandler := handler.NewSearchHandler(deps.VideoRepo, deps.Retrieval)
	chatHandler := handler.NewChatHandler(deps.Retrieval, deps.Answer)
	videoHandler := handler.NewVideoHandler(deps.VideoRepo, deps.ChunkRepo, deps.Searcher)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Search
		v1.GET("/search/keyword", searchHandler.KeywordSearch)
		v1.POST("/search/semantic", searchHandler.SemanticSearch)

		// Question answering
		v1.POST("/chat", chatHandler.Chat)

		// Catalog
		v1.GET("/videos", videoHandler.ListVideos)
		v1.GET("/videos/:id", videoHandler.GetVideo)

		// Stats
		v1.GET("/stats", videoHandler.GetStats)
	}

	return r
}
