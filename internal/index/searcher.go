package index

import (
	"context"

	"github.com/timmy/sermonkb/internal/logger"
)

// Candidate is a vector search result resolved through the positional
// metadata: which chunk the vector belongs to and how far it is from the
// query. Smaller distance means more similar.
type Candidate struct {
	ChunkID  int64
	VideoID  string
	Distance float32
}

// Searcher is the vector search capability. Variants are selected once at
// startup by name: "flat" wraps the file artifacts, "qdrant" queries a
// remote collection.
type Searcher interface {
	// Search returns up to k candidates, most similar first.
	Search(ctx context.Context, vector []float32, k int) ([]Candidate, error)

	// Size returns the number of indexed vectors.
	Size(ctx context.Context) (int, error)

	// Identity returns the embedding provider and model the indexed
	// vectors were produced with.
	Identity() (provider, model string)

	Close() error
}

// FlatSearcher serves queries from a loaded artifact pair. The index and
// metadata are read-only after construction, so concurrent queries share
// them without locking.
type FlatSearcher struct {
	flat *Flat
	meta *Metadata
}

// NewFlatSearcher wraps a validated index/metadata pair.
func NewFlatSearcher(flat *Flat, meta *Metadata) *FlatSearcher {
	return &FlatSearcher{flat: flat, meta: meta}
}

func (s *FlatSearcher) Search(ctx context.Context, vector []float32, k int) ([]Candidate, error) {
	hits, err := s.flat.Search(vector, k)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		// Positions outside the metadata are skipped, never an error.
		if hit.Position < 0 || hit.Position >= len(s.meta.Entries) {
			logger.CtxDebug(ctx, "Skipping hit with out-of-range position %d (entries: %d)", hit.Position, len(s.meta.Entries))
			continue
		}
		entry := s.meta.Entries[hit.Position]
		candidates = append(candidates, Candidate{
			ChunkID:  entry.ChunkID,
			VideoID:  entry.VideoID,
			Distance: hit.Distance,
		})
	}
	return candidates, nil
}

func (s *FlatSearcher) Size(ctx context.Context) (int, error) {
	return s.flat.Len(), nil
}

func (s *FlatSearcher) Identity() (string, string) {
	return s.meta.Provider, s.meta.Model
}

func (s *FlatSearcher) Close() error { return nil }
