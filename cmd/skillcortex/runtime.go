package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillcortex/pkg/config"
	"github.com/jingkaihe/skillcortex/pkg/index"
	"github.com/jingkaihe/skillcortex/pkg/query"
	"github.com/jingkaihe/skillcortex/pkg/scanner"
	"github.com/jingkaihe/skillcortex/pkg/tags"
)

// runtime bundles the wired components every subcommand needs.
type runtime struct {
	config   *config.Config
	store    *index.Store
	engine   *query.Engine
	registry *tags.Registry
}

// newRuntime loads configuration and wires the scanner, tag registry,
// cache store, index store, and query engine. The caller owns Close.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no skill roots configured")
	}

	sc, err := scanner.New(cfg.Roots, scanner.WithIgnoreGlobs(cfg.Ignore...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scanner")
	}

	registry, err := tags.Load(cfg.TagsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tag registry")
	}

	cache, err := index.NewCacheStore(ctx, index.CacheConfig{
		Backend: cfg.CacheBackend,
		Path:    cfg.CachePath,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open index cache")
	}

	store := index.NewStore(sc, registry, cache)
	return &runtime{
		config:   cfg,
		store:    store,
		engine:   query.NewEngine(store),
		registry: registry,
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}
