// Package blob stores snapshot CSV blobs under deterministic paths. The
// filesystem is abstracted through afero so tests run against an in-memory
// FS and deployments can mount object storage at the root.
package blob

import (
	"fmt"
	"path"
	"time"

	"github.com/spf13/afero"
)

// Store reads and writes blobs below a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore returns a Store backed by the OS filesystem.
func NewStore(root string) *Store {
	return &Store{fs: afero.NewOsFs(), root: root}
}

// NewStoreWithFs returns a Store on an explicit filesystem, used by tests
// with afero.NewMemMapFs.
func NewStoreWithFs(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// SnapshotPath builds the deterministic storage key for a snapshot blob.
// Callers must treat the result as opaque beyond "stable and unique per
// snapshot".
func SnapshotPath(ownerID, channelID, videoID string, version int32, createdAt time.Time) string {
	return path.Join(
		"owner", ownerID,
		"channel", channelID,
		"video", videoID,
		fmt.Sprintf("v%d", version),
		fmt.Sprintf("%d.csv", createdAt.UnixMilli()),
	)
}

// Put writes data at key, creating parent directories as needed. An
// existing blob at the same key is overwritten (the repair loop replaces
// snapshot blobs in place).
func (s *Store) Put(key string, data []byte) error {
	full := path.Join(s.root, key)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return fmt.Errorf("blob mkdir %s: %w", key, err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o644); err != nil {
		return fmt.Errorf("blob write %s: %w", key, err)
	}
	return nil
}

// Get reads the blob at key.
func (s *Store) Get(key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path.Join(s.root, key))
	if err != nil {
		return nil, fmt.Errorf("blob read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob at key. Missing blobs are not an error.
func (s *Store) Delete(key string) error {
	full := path.Join(s.root, key)
	if exists, _ := afero.Exists(s.fs, full); !exists {
		return nil
	}
	if err := s.fs.Remove(full); err != nil {
		return fmt.Errorf("blob delete %s: %w", key, err)
	}
	return nil
}
