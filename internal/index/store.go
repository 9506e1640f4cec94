package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/timmy/sermonkb/internal/domain"
)

// Artifact file names inside the index directory.
const (
	IndexFileName = "index.bin"
	MetaFileName  = "index.meta.json"
)

// FileStore persists the index and its metadata as a pair of files.
// Both are written to temporary names and renamed into place, index first,
// metadata last, so readers never observe a half-published pair.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// IndexPath returns the path of the binary index artifact.
func (s *FileStore) IndexPath() string { return filepath.Join(s.dir, IndexFileName) }

// MetaPath returns the path of the metadata artifact.
func (s *FileStore) MetaPath() string { return filepath.Join(s.dir, MetaFileName) }

// Save publishes the index together with its metadata. The metadata's
// count and content hash are filled in from the serialized index, so the
// caller only provides provider identity, dimension, and entries.
func (s *FileStore) Save(flat *Flat, meta *Metadata) error {
	if len(meta.Entries) != flat.Len() {
		return fmt.Errorf("%w: %d entries for %d vectors", domain.ErrIndexMetadataMismatch, len(meta.Entries), flat.Len())
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	// Serialize the index to its temp file, hashing as we write.
	idxTmp := s.IndexPath() + ".tmp"
	idxFile, err := os.Create(idxTmp)
	if err != nil {
		return fmt.Errorf("failed to create index temp file: %w", err)
	}
	hasher := sha256.New()
	if _, err := flat.WriteTo(io.MultiWriter(idxFile, hasher)); err != nil {
		idxFile.Close()
		os.Remove(idxTmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := idxFile.Sync(); err != nil {
		idxFile.Close()
		os.Remove(idxTmp)
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := idxFile.Close(); err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("failed to close index: %w", err)
	}

	meta.Version = MetadataVersion
	meta.Count = flat.Len()
	meta.Dimension = flat.Dimension()
	meta.IndexSHA256 = hex.EncodeToString(hasher.Sum(nil))

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaTmp := s.MetaPath() + ".tmp"
	if err := os.WriteFile(metaTmp, metaBytes, 0o644); err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("failed to write metadata temp file: %w", err)
	}

	// Publish: index first, metadata last.
	if err := os.Rename(idxTmp, s.IndexPath()); err != nil {
		os.Remove(idxTmp)
		os.Remove(metaTmp)
		return fmt.Errorf("failed to publish index: %w", err)
	}
	if err := os.Rename(metaTmp, s.MetaPath()); err != nil {
		os.Remove(metaTmp)
		return fmt.Errorf("failed to publish metadata: %w", err)
	}

	return nil
}

// Load reads and validates the artifact pair. Missing artifacts yield
// ErrIndexUnavailable; any disagreement between the pair (format version,
// entry count, content hash, dimension) yields ErrIndexMetadataMismatch.
func (s *FileStore) Load() (*Flat, *Metadata, error) {
	metaBytes, err := os.ReadFile(s.MetaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: metadata file missing at %s", domain.ErrIndexUnavailable, s.MetaPath())
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable metadata: %v", domain.ErrIndexUnavailable, err)
	}
	if meta.Version != MetadataVersion {
		return nil, nil, fmt.Errorf("%w: metadata version %d, want %d", domain.ErrIndexMetadataMismatch, meta.Version, MetadataVersion)
	}

	idxBytes, err := os.ReadFile(s.IndexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: index file missing at %s", domain.ErrIndexUnavailable, s.IndexPath())
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	sum := sha256.Sum256(idxBytes)
	if got := hex.EncodeToString(sum[:]); got != meta.IndexSHA256 {
		return nil, nil, fmt.Errorf("%w: index hash %s does not match metadata %s", domain.ErrIndexMetadataMismatch, got, meta.IndexSHA256)
	}

	flat, err := ReadFlat(bytes.NewReader(idxBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	if flat.Len() != meta.Count || flat.Len() != len(meta.Entries) {
		return nil, nil, fmt.Errorf("%w: index has %d vectors, metadata lists %d entries (count %d)",
			domain.ErrIndexMetadataMismatch, flat.Len(), len(meta.Entries), meta.Count)
	}
	if flat.Dimension() != meta.Dimension {
		return nil, nil, fmt.Errorf("%w: index dimension %d, metadata says %d", domain.ErrIndexMetadataMismatch, flat.Dimension(), meta.Dimension)
	}

	return flat, &meta, nil
}
