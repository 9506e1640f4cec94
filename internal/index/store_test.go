package index

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/timmy/sermonkb/internal/domain"
)

func testMeta(entries ...EntryRef) *Metadata {
	return &Metadata{
		Provider: "local",
		Model:    "feature-hash-256",
		Entries:  entries,
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	f := buildFlat(t, []float32{1, 2}, []float32{3, 4})
	meta := testMeta(
		EntryRef{ChunkID: 10, VideoID: "vid-a"},
		EntryRef{ChunkID: 11, VideoID: "vid-b"},
	)
	if err := store.Save(f, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	gotFlat, gotMeta, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotFlat.Len() != 2 || gotFlat.Dimension() != 2 {
		t.Errorf("loaded shape dim=%d len=%d", gotFlat.Dimension(), gotFlat.Len())
	}
	if gotMeta.Provider != "local" || gotMeta.Model != "feature-hash-256" {
		t.Errorf("provider identity lost: %s/%s", gotMeta.Provider, gotMeta.Model)
	}
	if gotMeta.Count != 2 || len(gotMeta.Entries) != 2 {
		t.Errorf("count=%d entries=%d, want 2/2", gotMeta.Count, len(gotMeta.Entries))
	}
	if gotMeta.Entries[1].ChunkID != 11 || gotMeta.Entries[1].VideoID != "vid-b" {
		t.Errorf("entry 1 = %+v", gotMeta.Entries[1])
	}
	if gotMeta.IndexSHA256 == "" {
		t.Error("metadata is missing the index content hash")
	}
}

func TestFileStoreLoadMissingArtifacts(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, _, err := store.Load(); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("Load on empty dir = %v, want ErrIndexUnavailable", err)
	}
}

func TestFileStoreSaveRejectsEntryCountMismatch(t *testing.T) {
	store := NewFileStore(t.TempDir())
	f := buildFlat(t, []float32{1, 2}, []float32{3, 4})
	meta := testMeta(EntryRef{ChunkID: 10, VideoID: "vid-a"})

	if err := store.Save(f, meta); !errors.Is(err, domain.ErrIndexMetadataMismatch) {
		t.Errorf("Save = %v, want ErrIndexMetadataMismatch", err)
	}
}

func TestFileStoreLoadDetectsTamperedIndex(t *testing.T) {
	store := NewFileStore(t.TempDir())
	f := buildFlat(t, []float32{1, 2})
	if err := store.Save(f, testMeta(EntryRef{ChunkID: 1, VideoID: "v"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Flip a byte in the index file; the content hash check must fire.
	raw, err := os.ReadFile(store.IndexPath())
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(store.IndexPath(), raw, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	if _, _, err := store.Load(); !errors.Is(err, domain.ErrIndexMetadataMismatch) {
		t.Errorf("Load = %v, want ErrIndexMetadataMismatch", err)
	}
}

func TestFileStoreLoadDetectsVersionMismatch(t *testing.T) {
	store := NewFileStore(t.TempDir())
	f := buildFlat(t, []float32{1, 2})
	if err := store.Save(f, testMeta(EntryRef{ChunkID: 1, VideoID: "v"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(store.MetaPath())
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	meta.Version = MetadataVersion + 1
	raw, _ = json.Marshal(&meta)
	if err := os.WriteFile(store.MetaPath(), raw, 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	if _, _, err := store.Load(); !errors.Is(err, domain.ErrIndexMetadataMismatch) {
		t.Errorf("Load = %v, want ErrIndexMetadataMismatch", err)
	}
}

func TestFlatSearcherSkipsOutOfRangePositions(t *testing.T) {
	flat := buildFlat(t, []float32{0}, []float32{1}, []float32{2})
	// Metadata only covers the first two vectors; position 2 must be
	// skipped silently.
	meta := testMeta(
		EntryRef{ChunkID: 1, VideoID: "a"},
		EntryRef{ChunkID: 2, VideoID: "b"},
	)
	meta.Count = 2

	s := NewFlatSearcher(flat, meta)
	candidates, err := s.Search(context.Background(), []float32{2}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	// Nearest valid candidate to 2.0 is vector 1 (chunk 2).
	if candidates[0].ChunkID != 2 || candidates[1].ChunkID != 1 {
		t.Errorf("candidates = %+v", candidates)
	}
}
