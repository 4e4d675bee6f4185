package index

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// CacheContents is the persisted form of the index: every entry plus
// the generation and build timestamp of the snapshot it mirrors.
type CacheContents struct {
	Generation int64                        `json:"generation"`
	BuiltAt    time.Time                    `json:"builtAt"`
	Entries    map[string]*skilltypes.Entry `json:"entries"`
}

// CacheStore persists the index between process runs. Load returns
// (nil, nil) when no cache exists yet and a CorruptError when the
// cache cannot be decoded; corruption is never fatal to the caller.
type CacheStore interface {
	Load(ctx context.Context) (*CacheContents, error)
	Save(ctx context.Context, contents *CacheContents) error
	Close() error
}

// CorruptError marks a cache that exists but cannot be read. The index
// store treats it as an empty cache and logs it once.
type CorruptError struct {
	Path  string
	Cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache file %s is corrupt: %v", e.Path, e.Cause)
}

func (e *CorruptError) Unwrap() error { return e.Cause }

// IsCorrupt reports whether err marks a corrupt cache.
func IsCorrupt(err error) bool {
	var corrupt *CorruptError
	return errors.As(err, &corrupt)
}

// CacheConfig selects and locates the cache backend.
type CacheConfig struct {
	// Backend is "json" (default) or "sqlite".
	Backend string
	// Path is the cache file location.
	Path string
}

// NewCacheStore creates the configured cache backend.
func NewCacheStore(ctx context.Context, cfg CacheConfig) (CacheStore, error) {
	switch cfg.Backend {
	case "", "json":
		return NewJSONCacheStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteCacheStore(ctx, cfg.Path)
	default:
		return nil, errors.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
