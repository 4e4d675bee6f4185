package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

const jsonCacheVersion = 1

// jsonCacheFile is the on-disk layout of the JSON cache backend.
type jsonCacheFile struct {
	Version    int                          `json:"version"`
	Generation int64                        `json:"generation"`
	BuiltAt    time.Time                    `json:"builtAt"`
	Entries    map[string]*skilltypes.Entry `json:"entries"`
}

// JSONCacheStore persists the index to a single JSON file, written via
// temp-file-then-rename so a crash mid-write leaves the previous cache
// intact.
type JSONCacheStore struct {
	path string
}

// NewJSONCacheStore creates a JSON file-backed cache store.
func NewJSONCacheStore(path string) *JSONCacheStore {
	return &JSONCacheStore{path: path}
}

// Load reads the cache file. A missing file yields (nil, nil).
func (s *JSONCacheStore) Load(_ context.Context) (*CacheContents, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &CorruptError{Path: s.path, Cause: err}
	}

	var file jsonCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &CorruptError{Path: s.path, Cause: err}
	}
	if file.Version != jsonCacheVersion {
		return nil, &CorruptError{Path: s.path, Cause: errors.Errorf("unsupported cache version %d", file.Version)}
	}

	return &CacheContents{
		Generation: file.Generation,
		BuiltAt:    file.BuiltAt,
		Entries:    file.Entries,
	}, nil
}

// Save writes the cache atomically.
func (s *JSONCacheStore) Save(_ context.Context, contents *CacheContents) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	data, err := json.MarshalIndent(jsonCacheFile{
		Version:    jsonCacheVersion,
		Generation: contents.Generation,
		BuiltAt:    contents.BuiltAt,
		Entries:    contents.Entries,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache")
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary cache file")
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary cache file")
	}
	return nil
}

// Close is a no-op for the JSON backend.
func (s *JSONCacheStore) Close() error { return nil }
