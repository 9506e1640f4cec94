package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/timmy/sermonkb/internal/domain"
)

var localTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Common English function words that would dominate sermon transcripts.
var localStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "so": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "we": {}, "were": {},
	"will": {}, "with": {}, "you": {},
}

// LocalEmbedder is a deterministic offline provider: tokens are hashed
// into a fixed number of buckets and weighted by log term frequency. The
// same text always produces the same unit-length vector, which keeps
// index builds reproducible without any network dependency.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a local feature-hashing embedder.
func NewLocalEmbedder(dimensions int) (*LocalEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: local embedder dimensions must be positive, got %d",
			domain.ErrInvalidConfiguration, dimensions)
	}
	return &LocalEmbedder{dimensions: dimensions}, nil
}

func (s *LocalEmbedder) Name() string  { return "local" }
func (s *LocalEmbedder) Model() string { return fmt.Sprintf("feature-hash-%d", s.dimensions) }
func (s *LocalEmbedder) Dimension() int {
	return s.dimensions
}

// EmbedBatch embeds each text independently, preserving input order.
func (s *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = s.embed(text)
	}
	return embeddings, nil
}

// EmbedQuery embeds a query with the same features as documents, so
// queries and passages live in one space.
func (s *LocalEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.embed(query), nil
}

func (s *LocalEmbedder) embed(text string) []float32 {
	counts := make(map[uint32]int)
	for _, token := range localTokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, skip := localStopwords[token]; skip {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		counts[h.Sum32()%uint32(s.dimensions)]++
	}

	vec := make([]float32, s.dimensions)
	var norm float64
	for bucket, tf := range counts {
		w := 1 + math.Log(float64(tf))
		vec[bucket] = float32(w)
		norm += w * w
	}
	if norm == 0 {
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
