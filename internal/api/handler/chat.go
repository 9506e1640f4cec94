package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/service"
)

// ChatHandler answers questions over the sermon library.
type ChatHandler struct {
	retrieval *service.RetrievalService
	answer    *service.AnswerService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(retrieval *service.RetrievalService, answer *service.AnswerService) *ChatHandler {
	return &ChatHandler{
		retrieval: retrieval,
		answer:    answer,
	}
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
}

// Chat handles POST /api/v1/chat: retrieve relevant chunks, then generate
// a grounded answer with sources.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	chunks, err := h.retrieval.Retrieve(ctx, req.Question, req.TopK)
	if err != nil {
		status, msg := mapRetrievalError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	answer, err := h.answer.Generate(ctx, req.Question, chunks)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Answer generation failed: " + genErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Answer generation failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, answer)
}
