package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sermonkb/internal/index"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	searcher index.Searcher
}

// NewHealthHandler creates a new health handler. searcher may be nil when
// no index has been built yet.
func NewHealthHandler(searcher index.Searcher) *HealthHandler {
	return &HealthHandler{searcher: searcher}
}

// Health returns the health status of the service, including whether
// semantic search is ready to serve.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
	}

	if h.searcher == nil {
		resp["index"] = gin.H{"ready": false}
	} else {
		provider, model := h.searcher.Identity()
		idx := gin.H{
			"ready":    true,
			"provider": provider,
			"model":    model,
		}
		if size, err := h.searcher.Size(c.Request.Context()); err == nil {
			idx["vectors"] = size
		}
		resp["index"] = idx
	}

	c.JSON(http.StatusOK, resp)
}
