package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillcortex/pkg/scanner"
	"github.com/jingkaihe/skillcortex/pkg/tags"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

type storeFixture struct {
	root      string
	cachePath string
	registry  *tags.Registry
	store     *Store
}

func newStoreFixture(t *testing.T, roots ...string) *storeFixture {
	t.Helper()
	if len(roots) == 0 {
		roots = []string{t.TempDir()}
	}

	sc, err := scanner.New(roots)
	require.NoError(t, err)

	registry, err := tags.Load(filepath.Join(t.TempDir(), "tags.yaml"))
	require.NoError(t, err)

	cachePath := filepath.Join(t.TempDir(), "index.json")
	f := &storeFixture{
		root:      roots[0],
		cachePath: cachePath,
		registry:  registry,
		store:     NewStore(sc, registry, NewJSONCacheStore(cachePath)),
	}
	t.Cleanup(func() { f.store.Close() })
	return f
}

// reopen builds a fresh store over the same roots, registry, and cache
// file, simulating a process restart.
func (f *storeFixture) reopen(t *testing.T, roots ...string) *Store {
	t.Helper()
	if len(roots) == 0 {
		roots = []string{f.root}
	}
	sc, err := scanner.New(roots)
	require.NoError(t, err)
	store := NewStore(sc, f.registry, NewJSONCacheStore(f.cachePath))
	t.Cleanup(func() { store.Close() })
	return store
}

func writeSkillFile(t *testing.T, root, relDir, name, description string, skillTags []string) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(relDir))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := "---\nname: " + name + "\ndescription: " + description + "\n"
	if len(skillTags) > 0 {
		content += "tags: ["
		for i, tag := range skillTags {
			if i > 0 {
				content += ", "
			}
			content += tag
		}
		content += "]\n"
	}
	content += "---\n\n# " + name + "\n\nInstructions for " + name + ".\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, skilltypes.SkillFileName), []byte(content), 0o644))
}

func TestLoadBuildsIndexFromScratch(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "backend/deploy", "deploy", "Deploy a service", nil)
	writeSkillFile(t, f.root, "frontend/review", "review", "Review UI changes", nil)

	stats, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Reparsed)
	assert.Equal(t, 0, stats.Reused)
	assert.Equal(t, int64(1), stats.Generation)
	assert.NotEmpty(t, stats.RunID)

	snapshot := f.store.Snapshot()
	assert.Equal(t, 2, snapshot.Len())

	entry, ok := snapshot.Get("backend/deploy")
	require.True(t, ok)
	assert.True(t, entry.Valid)
	assert.Equal(t, "deploy", entry.Name)
	assert.Contains(t, entry.Body, "Instructions for deploy.")
}

func TestRebuildIsIdempotent(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "a", "a", "First skill", nil)
	writeSkillFile(t, f.root, "b", "b", "Second skill", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	stats, err := f.store.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Reused)
	assert.Equal(t, 0, stats.Reparsed)
	assert.Equal(t, 0, stats.Dropped)
}

func TestRebuildReparsesOnlyChangedSkill(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "stable", "stable", "Never changes", nil)
	writeSkillFile(t, f.root, "volatile", "volatile", "Changes often", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	// Different content length guarantees a new fingerprint.
	writeSkillFile(t, f.root, "volatile", "volatile", "Changes often, and just did change", nil)

	stats, err := f.store.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reused)
	assert.Equal(t, 1, stats.Reparsed)

	entry, ok := f.store.Snapshot().Get("volatile")
	require.True(t, ok)
	assert.Equal(t, "Changes often, and just did change", entry.Description)
}

func TestRebuildDropsDeletedSkill(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "keep", "keep", "Stays", nil)
	writeSkillFile(t, f.root, "gone", "gone", "Will be removed", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "gone")))

	stats, err := f.store.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dropped)

	_, ok := f.store.Snapshot().Get("gone")
	assert.False(t, ok)
	_, ok = f.store.Snapshot().Get("keep")
	assert.True(t, ok)
}

func TestInvalidSkillKeepsIDSlot(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "good", "good", "Parses fine", nil)

	badDir := filepath.Join(f.root, "bad")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, skilltypes.SkillFileName),
		[]byte("---\ndescription: no name field\n---\nbody\n"), 0o644))

	stats, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)

	snapshot := f.store.Snapshot()
	assert.Equal(t, 2, snapshot.Len())

	entry, ok := snapshot.Get("bad")
	require.True(t, ok)
	assert.False(t, entry.Valid)
	assert.Contains(t, entry.Reason, "missing_required_field")

	valid := snapshot.Valid()
	require.Len(t, valid, 1)
	assert.Equal(t, "good", valid[0].ID)

	var found bool
	for _, p := range snapshot.Problems() {
		if p.Kind == skilltypes.ProblemFrontmatter && p.SkillID == "bad" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDuplicateIDFirstRootWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSkillFile(t, first, "shared", "from-first", "Skill in the first root", nil)
	writeSkillFile(t, second, "shared", "from-second", "Skill in the second root", nil)

	f := newStoreFixture(t, first, second)
	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	entry, ok := f.store.Snapshot().Get("shared")
	require.True(t, ok)
	assert.Equal(t, "from-first", entry.Name)
	assert.Equal(t, first, entry.Root)

	var found bool
	for _, p := range f.store.Snapshot().Problems() {
		if p.Kind == skilltypes.ProblemDuplicateID && p.SkillID == "shared" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCacheSurvivesRestart(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "cached", "cached", "Persisted across restarts", nil)

	stats, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Reparsed)

	restarted := f.reopen(t)
	stats, err = restarted.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reused)
	assert.Equal(t, 0, stats.Reparsed)
	assert.Equal(t, int64(2), stats.Generation)
}

func TestCorruptCacheRebuildsFromScratch(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "skill", "skill", "Survives cache corruption", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(f.cachePath, []byte("{not json"), 0o644))

	restarted := f.reopen(t)
	stats, err := restarted.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reparsed)
	assert.Equal(t, 1, restarted.Snapshot().Len())
}

func TestAllRootsMissingPublishesEmptySnapshotWithError(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "skill", "skill", "Exists for the first pass", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.store.Snapshot().Len())

	missing := filepath.Join(t.TempDir(), "nope")
	broken := f.reopen(t, missing)
	_, err = broken.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no readable skill roots")
	assert.Equal(t, 0, broken.Snapshot().Len())
}

func TestAllRootsUnreadablePublishesEmptySnapshotWithError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}

	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "skill", "skill", "Exists for the first pass", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.store.Snapshot().Len())

	// The root still exists, it just denies reads. That must degrade
	// the same way as a missing root, not masquerade as a scan that
	// found zero skills.
	require.NoError(t, os.Chmod(f.root, 0o000))
	t.Cleanup(func() { _ = os.Chmod(f.root, 0o755) })

	broken := f.reopen(t)
	_, err = broken.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no readable skill roots")
	assert.Equal(t, 0, broken.Snapshot().Len())
}

func TestTagIssuesRecorded(t *testing.T) {
	f := newStoreFixture(t)
	require.NoError(t, f.registry.Add("infra", "Infrastructure"))

	writeSkillFile(t, f.root, "tagged", "tagged", "Fully registered tags", []string{"infra"})
	writeSkillFile(t, f.root, "untagged", "untagged", "No tags at all", nil)
	writeSkillFile(t, f.root, "odd", "odd", "Carries an unregistered tag", []string{"infra", "mystery"})

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	snapshot := f.store.Snapshot()

	entry, _ := snapshot.Get("tagged")
	assert.Empty(t, entry.TagIssues)

	entry, _ = snapshot.Get("untagged")
	assert.Equal(t, []string{"missing_tags"}, entry.TagIssues)

	entry, _ = snapshot.Get("odd")
	assert.Equal(t, []string{"unknown_tags:mystery"}, entry.TagIssues)
	assert.True(t, entry.Valid) // advisory only
}

func TestConcurrentRebuilds(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "skill", "skill", "Raced over", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := f.store.Rebuild(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, stats)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Snapshot().Len())
}
