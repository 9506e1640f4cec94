package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/repository"
	"github.com/timmy/sermonkb/internal/service"
)

// SearchHandler handles keyword and semantic search endpoints.
type SearchHandler struct {
	videoRepo *repository.VideoRepository
	retrieval *service.RetrievalService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(videoRepo *repository.VideoRepository, retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{
		videoRepo: videoRepo,
		retrieval: retrieval,
	}
}

// KeywordSearch handles GET /api/v1/search/keyword.
func (h *SearchHandler) KeywordSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	hits, err := h.videoRepo.KeywordSearch(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}
	if hits == nil {
		hits = []repository.KeywordHit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": hits,
		"total":   len(hits),
	})
}

// SemanticSearchRequest is the body of POST /api/v1/search/semantic.
type SemanticSearchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// SemanticSearch handles POST /api/v1/search/semantic.
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	var req SemanticSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	results, err := h.retrieval.Retrieve(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		status, msg := mapRetrievalError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if results == nil {
		results = []service.RetrievedChunk{}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": results,
		"total":   len(results),
	})
}

// mapRetrievalError translates retrieval failures to HTTP status codes: a
// missing index is a service-availability problem, a provider failure is
// an upstream problem.
func mapRetrievalError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "Search index is not available, run the indexer first"
	case errors.Is(err, domain.ErrIndexMetadataMismatch):
		return http.StatusServiceUnavailable, "Search index is inconsistent, rebuild it: " + err.Error()
	default:
		var provErr *domain.ProviderError
		if errors.As(err, &provErr) {
			return http.StatusBadGateway, "Embedding provider failed: " + provErr.Error()
		}
		return http.StatusInternalServerError, "Search failed: " + err.Error()
	}
}
