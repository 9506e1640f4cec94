// Package chunker splits transcripts into fixed-size overlapping chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/timmy/sermonkb/internal/domain"
)

// Unit selects what a chunk size is measured in.
type Unit string

const (
	UnitChars Unit = "chars"
	UnitWords Unit = "words"
)

// Defaults for character-based chunking.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Config holds chunking parameters. Size and overlap are measured in the
// configured unit.
type Config struct {
	Unit    Unit
	Size    int
	Overlap int
}

// Piece is one chunk produced from a transcript. Position is the chunk
// ordinal within the document, starting at 0. Offset is the start of the
// chunk in the source text, in units.
type Piece struct {
	Position int
	Offset   int
	Text     string
}

// Chunker produces a deterministic chunk sequence: the same text and the
// same configuration always yield identical pieces.
type Chunker struct {
	unit    Unit
	size    int
	overlap int
}

// New validates the configuration and returns a Chunker. A size that does
// not exceed the overlap, or a negative overlap, is rejected; values are
// never clamped.
func New(cfg Config) (*Chunker, error) {
	unit := cfg.Unit
	if unit == "" {
		unit = UnitChars
	}
	if unit != UnitChars && unit != UnitWords {
		return nil, fmt.Errorf("%w: unknown chunking unit %q", domain.ErrInvalidConfiguration, cfg.Unit)
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, cfg.Size)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfiguration, cfg.Overlap)
	}
	if cfg.Size <= cfg.Overlap {
		return nil, fmt.Errorf("%w: chunk size %d must be greater than overlap %d", domain.ErrInvalidConfiguration, cfg.Size, cfg.Overlap)
	}
	return &Chunker{unit: unit, size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Unit returns the configured measurement unit.
func (c *Chunker) Unit() Unit { return c.unit }

// Split chunks the text. Empty or whitespace-only input yields no pieces.
// Every unit of the input is covered; consecutive pieces overlap by the
// configured amount and the final piece may be shorter than size.
func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.unit == UnitWords {
		return c.splitWords(text)
	}
	return c.splitChars(text)
}

func (c *Chunker) splitChars(text string) []Piece {
	runes := []rune(text)
	stride := c.size - c.overlap

	var pieces []Piece
	for start, pos := 0, 0; start < len(runes); start, pos = start+stride, pos+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, Piece{
			Position: pos,
			Offset:   start,
			Text:     string(runes[start:end]),
		})
	}
	return pieces
}

func (c *Chunker) splitWords(text string) []Piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	stride := c.size - c.overlap

	var pieces []Piece
	for start, pos := 0, 0; start < len(words); start, pos = start+stride, pos+1 {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, Piece{
			Position: pos,
			Offset:   start,
			Text:     strings.Join(words[start:end], " "),
		})
	}
	return pieces
}
