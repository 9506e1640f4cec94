package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/sermonkb/internal/config"
	"github.com/timmy/sermonkb/internal/domain"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Embedder turns text into fixed-dimension vectors. All vectors produced
// by one Embedder share the same provider/model identity; mixing vectors
// across identities is never allowed.
type Embedder interface {
	// Name returns the provider name recorded in index metadata.
	Name() string
	// Model returns the model identifier recorded in index metadata.
	Model() string
	// Dimension returns the vector width.
	Dimension() int
	// EmbedBatch embeds document texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// NewEmbedder builds the configured embedding provider. Unknown providers
// are a configuration error, not a fallback.
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai embedding provider requires an API key", domain.ErrInvalidConfiguration)
		}
		return newOpenAIEmbedder(cfg), nil
	case "local":
		return NewLocalEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfiguration, cfg.Provider)
	}
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *resty.Client
	model      string
	dimensions int
	batchSize  int
	retry      RetryPolicy
}

func newOpenAIEmbedder(cfg *config.EmbeddingConfig) *OpenAIEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	retry := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		retry.InitialBackoff = cfg.RetryBackoff
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		retry:      retry,
	}
}

func (s *OpenAIEmbedder) Name() string   { return "openai" }
func (s *OpenAIEmbedder) Model() string  { return s.model }
func (s *OpenAIEmbedder) Dimension() int { return s.dimensions }

type openAIEmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into API-sized batches and preserving input order.
func (s *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a single search query.
func (s *OpenAIEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := s.embedOnce(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &domain.ProviderError{Provider: "openai", Detail: "no embedding returned"}
	}
	return embeddings[0], nil
}

func (s *OpenAIEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := openAIEmbeddingRequest{
		Model:      s.model,
		Input:      texts,
		Dimensions: s.dimensions,
	}

	var embeddings [][]float32
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var resp openAIEmbeddingResponse
		httpResp, err := s.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&resp).
			Post("/embeddings")

		if err != nil {
			// Network-level failures are worth retrying
			return &domain.ProviderError{Provider: "openai", Detail: err.Error(), Transient: true}
		}

		if httpResp.StatusCode() != http.StatusOK {
			detail := fmt.Sprintf("status %d", httpResp.StatusCode())
			if resp.Error != nil && resp.Error.Message != "" {
				detail = resp.Error.Message
			}
			return &domain.ProviderError{
				Provider:   "openai",
				StatusCode: httpResp.StatusCode(),
				Detail:     detail,
				Transient:  isRetryableStatus(httpResp.StatusCode()),
			}
		}

		if len(resp.Data) != len(texts) {
			return &domain.ProviderError{
				Provider: "openai",
				Detail:   fmt.Sprintf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts)),
			}
		}

		// The API may reorder results; restore input order by index
		embeddings = make([][]float32, len(texts))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(embeddings) {
				return &domain.ProviderError{
					Provider: "openai",
					Detail:   fmt.Sprintf("embedding index %d out of range", item.Index),
				}
			}
			embeddings[item.Index] = item.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

// isRetryableStatus reports whether a status code indicates a transient
// condition: rate limiting or a server-side failure.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
