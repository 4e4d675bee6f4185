package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillcortex/pkg/frontmatter"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/scanner"
	"github.com/jingkaihe/skillcortex/pkg/tags"
	"github.com/jingkaihe/skillcortex/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// Store owns the authoritative skill index. It reconciles the
// published snapshot against scanner output, persists the result to
// the cache backend, and serializes tag-apply writes with
// reconciliation passes.
//
// Concurrency: at most one reconciliation runs at a time. A rebuild
// request arriving while one is in flight is coalesced: it waits for
// and shares the in-flight result rather than queuing another pass.
type Store struct {
	scanner  *scanner.Scanner
	registry *tags.Registry
	cache    CacheStore

	snapshot atomic.Pointer[Snapshot]

	// opMu serializes full reconciliation and tag-apply passes so an
	// apply is never silently lost under a concurrent rebuild.
	opMu sync.Mutex

	flightMu sync.Mutex
	inflight *rebuildCall

	corruptLogged bool
}

type rebuildCall struct {
	done  chan struct{}
	stats *skilltypes.RebuildStats
	err   error
}

// NewStore creates an index store. Call Load before serving queries.
func NewStore(sc *scanner.Scanner, registry *tags.Registry, cache CacheStore) *Store {
	s := &Store{
		scanner:  sc,
		registry: registry,
		cache:    cache,
	}
	s.snapshot.Store(newSnapshot(0, time.Time{}, nil, nil))
	return s
}

// Registry exposes the tag registry the store validates against.
func (s *Store) Registry() *tags.Registry {
	return s.registry
}

// Snapshot returns the currently published snapshot. Callers keep
// using the returned reference even if a rebuild completes
// concurrently.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Load seeds the snapshot from the persisted cache, then runs an
// initial reconciliation so the index reflects the filesystem. A
// corrupt cache is logged once and treated as empty.
func (s *Store) Load(ctx context.Context) (*skilltypes.RebuildStats, error) {
	contents, err := s.cache.Load(ctx)
	if err != nil {
		if !IsCorrupt(err) {
			return nil, errors.Wrap(err, "failed to load index cache")
		}
		if !s.corruptLogged {
			logger.G(ctx).WithError(err).Warn("index cache is corrupt, starting from an empty cache")
			s.corruptLogged = true
		}
	}
	if contents != nil {
		s.snapshot.Store(newSnapshot(contents.Generation, contents.BuiltAt, contents.Entries, nil))
		logger.G(ctx).WithFields(map[string]interface{}{
			"generation": contents.Generation,
			"entries":    len(contents.Entries),
		}).Debug("seeded snapshot from cache")
	}

	return s.Rebuild(ctx)
}

// Close releases the cache backend.
func (s *Store) Close() error {
	return s.cache.Close()
}

// Rebuild forces a reconciliation pass. Requests arriving while a
// rebuild is in flight share its result.
func (s *Store) Rebuild(ctx context.Context) (*skilltypes.RebuildStats, error) {
	s.flightMu.Lock()
	if call := s.inflight; call != nil {
		s.flightMu.Unlock()
		select {
		case <-call.done:
			return call.stats, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &rebuildCall{done: make(chan struct{})}
	s.inflight = call
	s.flightMu.Unlock()

	call.err = telemetry.WithSpan(ctx, "index.rebuild", func(ctx context.Context) error {
		var err error
		call.stats, err = s.reconcile(ctx)
		return err
	})

	s.flightMu.Lock()
	s.inflight = nil
	s.flightMu.Unlock()
	close(call.done)

	return call.stats, call.err
}

// reconcile brings the snapshot up to date with the filesystem. On
// failure the previously published snapshot remains in place.
func (s *Store) reconcile(ctx context.Context) (*skilltypes.RebuildStats, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	start := time.Now()
	runID := uuid.New().String()
	log := logger.G(ctx).WithField("run_id", runID)

	previous := s.snapshot.Load()

	scan, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "scan failed")
	}

	stats := &skilltypes.RebuildStats{
		RunID:   runID,
		Scanned: len(scan.Candidates),
	}
	problems := append([]skilltypes.Problem(nil), scan.Warnings...)

	entries := make(map[string]*skilltypes.Entry, len(scan.Candidates))
	for _, candidate := range scan.Candidates {
		if existing, dup := entries[candidate.ID]; dup {
			problems = append(problems, skilltypes.Problem{
				Kind:    skilltypes.ProblemDuplicateID,
				SkillID: candidate.ID,
				Path:    filepath.Join(candidate.Root, filepath.FromSlash(candidate.RelativePath)),
				Detail:  fmt.Sprintf("duplicate skill id, keeping entry from root %s", existing.Root),
			})
			continue
		}

		if cached, ok := previous.Get(candidate.ID); ok &&
			cached.Fingerprint == candidate.Fingerprint && cached.Root == candidate.Root {
			entries[candidate.ID] = cached
			stats.Reused++
		} else {
			entries[candidate.ID] = s.parseCandidate(ctx, candidate)
			stats.Reparsed++
		}

		entry := entries[candidate.ID]
		if !entry.Valid {
			stats.Invalid++
			problems = append(problems, skilltypes.Problem{
				Kind:    skilltypes.ProblemFrontmatter,
				SkillID: entry.ID,
				Path:    entry.SkillFile(),
				Detail:  entry.Reason,
			})
		} else if len(entry.TagIssues) > 0 {
			problems = append(problems, skilltypes.Problem{
				Kind:    skilltypes.ProblemUnknownTags,
				SkillID: entry.ID,
				Detail:  strings.Join(entry.TagIssues, "; "),
			})
		}
	}

	for id := range previous.entries {
		if _, ok := entries[id]; !ok {
			stats.Dropped++
		}
	}

	if len(s.scanner.Roots()) > 0 && scan.RootsScanned == 0 {
		// Total filesystem failure: publish an empty snapshot and
		// surface a top-level error instead of pretending all skills
		// were deleted silently.
		snapshot := s.publish(previous, entries, problems, stats, start)
		persistErr := s.persist(ctx, snapshot)
		return stats, multierror.Append(errors.New("no readable skill roots"), persistErr).ErrorOrNil()
	}

	snapshot := s.publish(previous, entries, problems, stats, start)

	log.WithFields(map[string]interface{}{
		"generation": snapshot.Generation,
		"scanned":    stats.Scanned,
		"reused":     stats.Reused,
		"reparsed":   stats.Reparsed,
		"dropped":    stats.Dropped,
		"invalid":    stats.Invalid,
		"duration":   stats.Duration,
	}).Info("index rebuilt")
	telemetry.SetAttributes(ctx,
		attribute.Int64("index.generation", snapshot.Generation),
		attribute.Int("index.scanned", stats.Scanned),
		attribute.Int("index.reparsed", stats.Reparsed),
	)

	if err := s.persist(ctx, snapshot); err != nil {
		// The in-memory snapshot stays published; persistence failure
		// is reported to the rebuild caller only.
		log.WithError(err).Error("failed to persist index cache")
		return stats, err
	}
	return stats, nil
}

func (s *Store) publish(previous *Snapshot, entries map[string]*skilltypes.Entry, problems []skilltypes.Problem, stats *skilltypes.RebuildStats, start time.Time) *Snapshot {
	builtAt := time.Now()
	snapshot := newSnapshot(previous.Generation+1, builtAt, entries, problems)
	s.snapshot.Store(snapshot)
	stats.Generation = snapshot.Generation
	stats.BuiltAt = builtAt
	stats.Duration = time.Since(start)
	return snapshot
}

func (s *Store) persist(ctx context.Context, snapshot *Snapshot) error {
	err := s.cache.Save(ctx, &CacheContents{
		Generation: snapshot.Generation,
		BuiltAt:    snapshot.BuiltAt,
		Entries:    snapshot.entries,
	})
	return errors.Wrap(err, "failed to persist index cache")
}

// parseCandidate builds a fresh entry from disk. Parse failures yield
// an invalid entry that keeps its id slot but is excluded from query
// results.
func (s *Store) parseCandidate(ctx context.Context, candidate scanner.Candidate) *skilltypes.Entry {
	entry := &skilltypes.Entry{
		ID:           candidate.ID,
		Root:         candidate.Root,
		RelativePath: candidate.RelativePath,
		Fingerprint:  candidate.Fingerprint,
	}

	content, err := os.ReadFile(entry.SkillFile())
	if err != nil {
		entry.Reason = "missing file"
		return entry
	}

	parsed, err := frontmatter.Parse(content)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("skill", candidate.ID).Debug("skill failed to parse")
		entry.Reason = err.Error()
		return entry
	}

	entry.Valid = true
	entry.Name = parsed.Name
	entry.Description = parsed.Description
	entry.Tags = parsed.Tags
	entry.Extra = parsed.Extra
	entry.Body = parsed.Body
	entry.TagIssues = s.tagIssues(parsed.Tags)
	return entry
}

// tagIssues computes the advisory tag diagnostics for an entry.
func (s *Store) tagIssues(entryTags []string) []string {
	var issues []string
	if len(entryTags) == 0 {
		issues = append(issues, "missing_tags")
		return issues
	}
	if unknown := s.registry.Unknown(entryTags); len(unknown) > 0 {
		issues = append(issues, "unknown_tags:"+strings.Join(unknown, ","))
	}
	return issues
}
