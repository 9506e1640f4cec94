package index

import (
	"bytes"
	"testing"
)

func buildFlat(t *testing.T, vectors ...[]float32) *Flat {
	t.Helper()
	f, err := NewFlat(len(vectors[0]))
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	for _, v := range vectors {
		if err := f.Add(v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return f
}

func TestFlatSearchOrdersByDistance(t *testing.T) {
	f := buildFlat(t,
		[]float32{0, 0},
		[]float32{3, 4},
		[]float32{1, 0},
	)

	hits, err := f.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	wantPositions := []int{0, 2, 1}
	if len(hits) != len(wantPositions) {
		t.Fatalf("got %d hits, want %d", len(hits), len(wantPositions))
	}
	for i, hit := range hits {
		if hit.Position != wantPositions[i] {
			t.Errorf("hit %d position = %d, want %d", i, hit.Position, wantPositions[i])
		}
	}
	if hits[2].Distance != 25 {
		t.Errorf("farthest distance = %v, want 25", hits[2].Distance)
	}
}

func TestFlatSearchTieBreaksByPosition(t *testing.T) {
	// Four vectors equidistant from the origin.
	f := buildFlat(t,
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{-1, 0},
		[]float32{0, -1},
	)

	hits, err := f.Search([]float32{0, 0}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, hit := range hits {
		if hit.Position != i {
			t.Errorf("equal distances must keep insertion order: hit %d has position %d", i, hit.Position)
		}
	}
}

func TestFlatSearchClampsK(t *testing.T) {
	f := buildFlat(t, []float32{1}, []float32{2})

	hits, err := f.Search([]float32{0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want all 2", len(hits))
	}

	hits, err = f.Search([]float32{0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("k=0 returned %d hits", len(hits))
	}
}

func TestFlatRejectsWrongDimension(t *testing.T) {
	f, err := NewFlat(3)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	if err := f.Add([]float32{1, 2}); err == nil {
		t.Error("Add accepted a 2-dim vector into a 3-dim index")
	}
	if _, err := f.Search([]float32{1, 2}, 1); err == nil {
		t.Error("Search accepted a 2-dim query against a 3-dim index")
	}
}

func TestFlatSerializationRoundTrip(t *testing.T) {
	f := buildFlat(t,
		[]float32{0.5, -1.25, 3},
		[]float32{-0.001, 42, 7.5},
	)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ReadFlat(&buf)
	if err != nil {
		t.Fatalf("ReadFlat: %v", err)
	}
	if got.Dimension() != 3 || got.Len() != 2 {
		t.Fatalf("round trip lost shape: dim=%d len=%d", got.Dimension(), got.Len())
	}
	for i := range f.vectors {
		for j := range f.vectors[i] {
			if f.vectors[i][j] != got.vectors[i][j] {
				t.Errorf("vector[%d][%d] = %v, want %v", i, j, got.vectors[i][j], f.vectors[i][j])
			}
		}
	}
}

func TestReadFlatRejectsGarbage(t *testing.T) {
	if _, err := ReadFlat(bytes.NewReader([]byte("not an index at all"))); err == nil {
		t.Error("ReadFlat accepted garbage input")
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 1e-7}
	blob := EncodeVector(vec)
	got, err := DecodeVector(blob, len(vec))
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("component %d = %v, want %v", i, got[i], vec[i])
		}
	}

	if _, err := DecodeVector(blob, 3); err == nil {
		t.Error("DecodeVector accepted a blob of the wrong length")
	}
}
