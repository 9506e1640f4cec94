package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/timmy/sermonkb/internal/domain"
)

func TestNewRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "size equals overlap", cfg: Config{Size: 200, Overlap: 200}},
		{name: "size below overlap", cfg: Config{Size: 100, Overlap: 200}},
		{name: "zero size", cfg: Config{Size: 0, Overlap: 0}},
		{name: "negative size", cfg: Config{Size: -1, Overlap: 0}},
		{name: "negative overlap", cfg: Config{Size: 100, Overlap: -1}},
		{name: "unknown unit", cfg: Config{Unit: "sentences", Size: 100, Overlap: 10}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Errorf("New(%+v) error = %v, want ErrInvalidConfiguration", tc.cfg, err)
			}
		})
	}
}

func TestSplitCharOffsets(t *testing.T) {
	c, err := New(Config{Size: 1000, Overlap: 200})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text := strings.Repeat("a", 2500)
	pieces := c.Split(text)

	wantOffsets := []int{0, 800, 1600, 2400}
	if len(pieces) != len(wantOffsets) {
		t.Fatalf("got %d pieces, want %d", len(pieces), len(wantOffsets))
	}
	for i, p := range pieces {
		if p.Offset != wantOffsets[i] {
			t.Errorf("piece %d offset = %d, want %d", i, p.Offset, wantOffsets[i])
		}
		if p.Position != i {
			t.Errorf("piece %d position = %d, want %d", i, p.Position, i)
		}
	}
	if got := len(pieces[3].Text); got != 100 {
		t.Errorf("final piece length = %d, want 100", got)
	}
}

func TestSplitDeterministic(t *testing.T) {
	c, err := New(Config{Size: 50, Overlap: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	first := c.Split(text)
	second := c.Split(text)

	if len(first) != len(second) {
		t.Fatalf("piece counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("piece %d differs between runs", i)
		}
	}
}

func TestSplitCoversAllInput(t *testing.T) {
	c, err := New(Config{Size: 7, Overlap: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text := "abcdefghijklmnopqrstuvwxyz"
	pieces := c.Split(text)

	covered := make([]bool, len(text))
	for _, p := range pieces {
		for i := range p.Text {
			covered[p.Offset+i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Errorf("input position %d not covered by any piece", i)
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(Config{Size: 100, Overlap: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, text := range []string{"", "   ", "\n\t "} {
		if pieces := c.Split(text); pieces != nil {
			t.Errorf("Split(%q) = %d pieces, want none", text, len(pieces))
		}
	}
}

func TestSplitShortInputSinglePiece(t *testing.T) {
	c, err := New(Config{Size: 1000, Overlap: 200})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pieces := c.Split("short transcript")
	if len(pieces) != 1 {
		t.Fatalf("got %d pieces, want 1", len(pieces))
	}
	if pieces[0].Text != "short transcript" || pieces[0].Position != 0 {
		t.Errorf("unexpected piece: %+v", pieces[0])
	}
}

func TestSplitWords(t *testing.T) {
	c, err := New(Config{Unit: UnitWords, Size: 5, Overlap: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	words := make([]string, 11)
	for i := range words {
		words[i] = "w" + string(rune('a'+i))
	}
	pieces := c.Split(strings.Join(words, " "))

	// stride 3: offsets 0, 3, 6, 9
	wantOffsets := []int{0, 3, 6, 9}
	if len(pieces) != len(wantOffsets) {
		t.Fatalf("got %d pieces, want %d", len(pieces), len(wantOffsets))
	}
	for i, p := range pieces {
		if p.Offset != wantOffsets[i] {
			t.Errorf("piece %d offset = %d, want %d", i, p.Offset, wantOffsets[i])
		}
	}
	if got := len(strings.Fields(pieces[0].Text)); got != 5 {
		t.Errorf("first piece has %d words, want 5", got)
	}
	if got := len(strings.Fields(pieces[3].Text)); got != 2 {
		t.Errorf("final piece has %d words, want 2", got)
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	c, err := New(Config{Size: 4, Overlap: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pieces := c.Split("héllo wörld")
	for _, p := range pieces {
		if got := len([]rune(p.Text)); got > 4 {
			t.Errorf("piece %d has %d runes, want at most 4", p.Position, got)
		}
	}
}
