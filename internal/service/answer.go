package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/prompts"
)

const sourcePreviewRunes = 300

// AnswerSource is one sermon the answer drew from, with a short preview of
// the best-matching excerpt.
type AnswerSource struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Preview     string    `json:"preview"`
}

// Answer is a generated answer with the sources that grounded it.
type Answer struct {
	Text    string         `json:"answer"`
	Sources []AnswerSource `json:"sources"`
}

// AnswerService generates grounded answers over retrieved transcript
// chunks using an OpenAI-compatible chat completions API.
type AnswerService struct {
	client      *resty.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(cfg *config.ChatConfig) *AnswerService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client.SetBaseURL(baseURL)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1200
	}

	return &AnswerService{
		client:      client,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// GetModel returns the chat model identifier.
func (s *AnswerService) GetModel() string {
	return s.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate answers the question from the retrieved chunks. With no chunks
// it returns a canned answer without calling the model. Generation
// failures are surfaced as-is and never retried.
func (s *AnswerService) Generate(ctx context.Context, question string, chunks []RetrievedChunk) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{Text: prompts.NoContextAnswer, Sources: []AnswerSource{}}, nil
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.AnswerSystemPrompt},
			{Role: "user", Content: buildAnswerPrompt(question, chunks)},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/chat/completions")

	if err != nil {
		return nil, &domain.GenerationError{Provider: "openai", Model: s.model, Detail: err.Error()}
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		detail := fmt.Sprintf("status %d", httpResp.StatusCode())
		if resp.Error != nil && resp.Error.Message != "" {
			detail = resp.Error.Message
		}
		return nil, &domain.GenerationError{
			Provider:   "openai",
			Model:      s.model,
			StatusCode: httpResp.StatusCode(),
			Detail:     detail,
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &domain.GenerationError{Provider: "openai", Model: s.model, Detail: "no choices in response"}
	}

	return &Answer{
		Text:    resp.Choices[0].Message.Content,
		Sources: collectSources(chunks),
	}, nil
}

// buildAnswerPrompt assembles the user message: labeled excerpts in
// retrieval order, then the question.
func buildAnswerPrompt(question string, chunks []RetrievedChunk) string {
	var b strings.Builder
	b.WriteString(prompts.AnswerContextHeader)
	b.WriteString("\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n",
			i+1, chunk.VideoTitle, chunk.PublishedAt.Format("2006-01-02"), chunk.Content)
	}
	b.WriteString(prompts.AnswerQuestionHeader)
	b.WriteString("\n")
	b.WriteString(question)
	return b.String()
}

// collectSources deduplicates chunks by video, keeping the best-ranked
// chunk of each video as its preview. Order follows retrieval rank.
func collectSources(chunks []RetrievedChunk) []AnswerSource {
	sources := make([]AnswerSource, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.VideoID]; ok {
			continue
		}
		seen[chunk.VideoID] = struct{}{}
		sources = append(sources, AnswerSource{
			VideoID:     chunk.VideoID,
			Title:       chunk.VideoTitle,
			PublishedAt: chunk.PublishedAt,
			Preview:     truncateRunes(chunk.Content, sourcePreviewRunes),
		})
	}
	return sources
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
