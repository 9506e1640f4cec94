package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/repository"
	"gorm.io/gorm"
)

// VideoHandler serves the video catalog and library statistics.
type VideoHandler struct {
	videoRepo *repository.VideoRepository
	chunkRepo *repository.ChunkRepository
	searcher  index.Searcher
}

// NewVideoHandler creates a new video handler. searcher may be nil when the
// vector index is not loaded.
func NewVideoHandler(videoRepo *repository.VideoRepository, chunkRepo *repository.ChunkRepository, searcher index.Searcher) *VideoHandler {
	return &VideoHandler{
		videoRepo: videoRepo,
		chunkRepo: chunkRepo,
		searcher:  searcher,
	}
}

// ListVideos handles GET /api/v1/videos.
func (h *VideoHandler) ListVideos(c *gin.Context) {
	limit := 50
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	videos, err := h.videoRepo.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list videos: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": videos,
		"total":  len(videos),
	})
}

// GetVideo handles GET /api/v1/videos/:id.
func (h *VideoHandler) GetVideo(c *gin.Context) {
	videoID := c.Param("id")

	video, err := h.videoRepo.GetByID(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Video not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get video: " + err.Error(),
		})
		return
	}

	chunkCount, err := h.chunkRepo.CountByVideo(c.Request.Context(), videoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count chunks: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video":  video,
		"chunks": chunkCount,
	})
}

// GetStats handles GET /api/v1/stats.
func (h *VideoHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	byStatus, err := h.videoRepo.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	chunkCount, err := h.chunkRepo.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	var totalVideos int64
	for _, n := range byStatus {
		totalVideos += n
	}

	indexInfo := gin.H{"available": false}
	if h.searcher != nil {
		provider, model := h.searcher.Identity()
		indexInfo = gin.H{
			"available": true,
			"provider":  provider,
			"model":     model,
		}
		if size, err := h.searcher.Size(ctx); err == nil {
			indexInfo["size"] = size
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":           totalVideos,
		"videos_by_status": byStatus,
		"chunks":           chunkCount,
		"index":            indexInfo,
	})
}
