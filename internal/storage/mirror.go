package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/timmy/sermonkb/internal/index"
	"github.com/timmy/sermonkb/internal/logger"
)

// ArtifactMirror copies index artifacts between the local index directory
// and object storage. The local files stay authoritative; the mirror lets
// a fresh API node pick up the latest build without running the indexer.
type ArtifactMirror struct {
	storage ObjectStorage
	dir     string
	prefix  string
}

// NewArtifactMirror creates a mirror for the given local index directory.
func NewArtifactMirror(storage ObjectStorage, dir, prefix string) *ArtifactMirror {
	return &ArtifactMirror{
		storage: storage,
		dir:     dir,
		prefix:  prefix,
	}
}

// Publish uploads the current index artifacts. The index file goes first
// so a concurrent Restore never sees metadata pointing at a missing index.
func (m *ArtifactMirror) Publish(ctx context.Context) error {
	for _, name := range []string{index.IndexFileName, index.MetaFileName} {
		if err := m.uploadFile(ctx, name); err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}
	logger.CtxInfo(ctx, "Published index artifacts to object storage under %q", m.prefix)
	return nil
}

// Restore downloads both artifacts into the local index directory,
// replacing whatever is there. Returns false without error when the
// remote has no artifacts yet.
func (m *ArtifactMirror) Restore(ctx context.Context) (bool, error) {
	exists, err := m.storage.Exists(ctx, m.key(index.MetaFileName))
	if err != nil {
		return false, fmt.Errorf("failed to check remote artifacts: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create index directory: %w", err)
	}
	for _, name := range []string{index.IndexFileName, index.MetaFileName} {
		if err := m.downloadFile(ctx, name); err != nil {
			return false, fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	logger.CtxInfo(ctx, "Restored index artifacts from object storage under %q", m.prefix)
	return true, nil
}

func (m *ArtifactMirror) key(name string) string {
	return path.Join(m.prefix, name)
}

func (m *ArtifactMirror) uploadFile(ctx context.Context, name string) error {
	raw, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return err
	}
	contentType := "application/octet-stream"
	if filepath.Ext(name) == ".json" {
		contentType = "application/json"
	}
	return m.storage.Upload(ctx, m.key(name), bytes.NewReader(raw), int64(len(raw)), contentType)
}

func (m *ArtifactMirror) downloadFile(ctx context.Context, name string) error {
	reader, err := m.storage.Download(ctx, m.key(name))
	if err != nil {
		return err
	}
	defer reader.Close()

	// Download to a temp file and rename, same publish discipline as the
	// local index store.
	tmp, err := os.CreateTemp(m.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(m.dir, name))
}
