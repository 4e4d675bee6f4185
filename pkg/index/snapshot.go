// Package index owns reconciliation between filesystem truth and the
// published snapshot. It keeps a persistent cache so unchanged skills
// are never re-parsed, and publishes immutable snapshots by atomic
// pointer swap so readers never observe a half-built index.
package index

import (
	"sort"
	"time"

	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// Snapshot is an immutable, fully reconciled view of the skill index.
// It holds every entry, valid and invalid; invalid entries occupy
// their id slot so a later fix is picked up without duplicate-id
// confusion, but they are excluded from query results.
type Snapshot struct {
	Generation int64
	BuiltAt    time.Time

	entries  map[string]*skilltypes.Entry
	problems []skilltypes.Problem
}

func newSnapshot(generation int64, builtAt time.Time, entries map[string]*skilltypes.Entry, problems []skilltypes.Problem) *Snapshot {
	if entries == nil {
		entries = map[string]*skilltypes.Entry{}
	}
	return &Snapshot{
		Generation: generation,
		BuiltAt:    builtAt,
		entries:    entries,
		problems:   problems,
	}
}

// Get returns the entry for id, whether valid or invalid.
func (s *Snapshot) Get(id string) (*skilltypes.Entry, bool) {
	entry, ok := s.entries[id]
	return entry, ok
}

// Len returns the total number of entries, including invalid ones.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Valid returns the valid entries sorted by id.
func (s *Snapshot) Valid() []*skilltypes.Entry {
	valid := make([]*skilltypes.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Valid {
			valid = append(valid, entry)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].ID < valid[j].ID })
	return valid
}

// All returns every entry sorted by id.
func (s *Snapshot) All() []*skilltypes.Entry {
	all := make([]*skilltypes.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Problems returns the diagnostics recorded by the reconciliation pass
// that built this snapshot.
func (s *Snapshot) Problems() []skilltypes.Problem {
	return s.problems
}
