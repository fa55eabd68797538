package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// FileCache implements the Cache interface using filesystem storage
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file-based cache rooted at dir.
// If dir is empty, uses a default cache directory in the user cache dir.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "workoutplan")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileCache{dir: dir, now: time.Now}, nil
}

// Read implements Reader interface
func (fc *FileCache) Read(_ context.Context, key string) (*Entry, bool) {
	data, err := os.ReadFile(fc.path(key))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Expired(fc.now()) {
		return nil, false
	}

	return &entry, true
}

// Write implements Writer interface
func (fc *FileCache) Write(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	path := fc.path(key)
	entry.FetchedAt = fc.now()
	entry.ExpiresAt = time.Time{}
	if ttl > 0 {
		entry.ExpiresAt = entry.FetchedAt.Add(ttl)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// path generates the full filesystem path for a cache key
func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.dir, sanitizeKey(key)+".json")
}
