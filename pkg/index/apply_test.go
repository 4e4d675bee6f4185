package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

func TestApplyTagsRewritesAndRepublishes(t *testing.T) {
	f := newStoreFixture(t)
	require.NoError(t, f.registry.Add("infra", "Infrastructure"))
	require.NoError(t, f.registry.Add("production", "Production changes"))

	writeSkillFile(t, f.root, "deploy", "deploy", "Deploy a service", []string{"stale"})

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	before := f.store.Snapshot().Generation

	results, err := f.store.ApplyTags(context.Background(), []TagUpdate{
		{SkillID: "deploy", Tags: []string{"infra", "production"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"infra", "production"}, results[0].Tags)
	assert.Empty(t, results[0].Unknown)
	assert.Empty(t, results[0].Error)

	snapshot := f.store.Snapshot()
	assert.Equal(t, before+1, snapshot.Generation)
	entry, ok := snapshot.Get("deploy")
	require.True(t, ok)
	assert.Equal(t, []string{"infra", "production"}, entry.Tags)
	assert.Empty(t, entry.TagIssues)
}

func TestApplyTagsRefreshesProblems(t *testing.T) {
	f := newStoreFixture(t)
	require.NoError(t, f.registry.Add("infra", "Infrastructure"))

	writeSkillFile(t, f.root, "fixable", "fixable", "Starts with an unknown tag", []string{"bogus"})
	writeSkillFile(t, f.root, "pristine", "pristine", "Starts clean", []string{"infra"})
	writeSkillFile(t, f.root, "bystander", "bystander", "Never touched", []string{"other"})

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, problemsFor(f.store.Snapshot(), "fixable"), 1)
	require.Len(t, problemsFor(f.store.Snapshot(), "bystander"), 1)

	// Fixing one skill's tags and breaking another's in the same apply
	// must both show up in Problems without waiting for a rebuild.
	_, err = f.store.ApplyTags(context.Background(), []TagUpdate{
		{SkillID: "fixable", Tags: []string{"infra"}},
		{SkillID: "pristine", Tags: []string{"mystery"}},
	})
	require.NoError(t, err)

	snapshot := f.store.Snapshot()
	assert.Empty(t, problemsFor(snapshot, "fixable"))

	broken := problemsFor(snapshot, "pristine")
	require.Len(t, broken, 1)
	assert.Contains(t, broken[0].Detail, "unknown_tags:mystery")

	assert.Len(t, problemsFor(snapshot, "bystander"), 1)
}

func problemsFor(snapshot *Snapshot, skillID string) []skilltypes.Problem {
	var matched []skilltypes.Problem
	for _, problem := range snapshot.Problems() {
		if problem.SkillID == skillID {
			matched = append(matched, problem)
		}
	}
	return matched
}

func TestApplyTagsSurvivesColdRebuild(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "deploy", "deploy", "Deploy a service", []string{"old"})

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	_, err = f.store.ApplyTags(context.Background(), []TagUpdate{
		{SkillID: "deploy", Tags: []string{"fresh"}},
	})
	require.NoError(t, err)

	// A brand-new store over the same root must reproduce the applied
	// tags purely from the rewritten SKILL.md.
	restarted := f.reopen(t)
	_, err = restarted.Load(context.Background())
	require.NoError(t, err)

	entry, ok := restarted.Snapshot().Get("deploy")
	require.True(t, ok)
	assert.Equal(t, []string{"fresh"}, entry.Tags)
}

func TestApplyTagsFingerprintStaysCurrent(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "deploy", "deploy", "Deploy a service", []string{"old"})

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	_, err = f.store.ApplyTags(context.Background(), []TagUpdate{
		{SkillID: "deploy", Tags: []string{"fresh"}},
	})
	require.NoError(t, err)

	// The apply re-fingerprints the rewritten file, so the next
	// rebuild reuses the entry instead of reparsing it.
	stats, err := f.store.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reused)
	assert.Equal(t, 0, stats.Reparsed)
}

func TestApplyTagsReportsUnknownButApplies(t *testing.T) {
	f := newStoreFixture(t)
	require.NoError(t, f.registry.Add("infra", "Infrastructure"))
	writeSkillFile(t, f.root, "deploy", "deploy", "Deploy a service", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	results, err := f.store.ApplyTags(context.Background(), []TagUpdate{
		{SkillID: "deploy", Tags: []string{"infra", "mystery"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"infra", "mystery"}, results[0].Tags)
	assert.Equal(t, []string{"mystery"}, results[0].Unknown)

	entry, _ := f.store.Snapshot().Get("deploy")
	assert.Equal(t, []string{"infra", "mystery"}, entry.Tags)
	assert.Equal(t, []string{"unknown_tags:mystery"}, entry.TagIssues)
}

func TestApplyTagsRejectsBadUpdates(t *testing.T) {
	f := newStoreFixture(t)
	writeSkillFile(t, f.root, "deploy", "deploy", "Deploy a service", nil)

	_, err := f.store.Load(context.Background())
	require.NoError(t, err)

	t.Run("no updates", func(t *testing.T) {
		_, err := f.store.ApplyTags(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("missing skill", func(t *testing.T) {
		results, err := f.store.ApplyTags(context.Background(), []TagUpdate{
			{SkillID: "nope", Tags: []string{"infra"}},
		})
		require.Error(t, err)
		require.Len(t, results, 1)
		assert.Contains(t, results[0].Error, "not found")
	})

	t.Run("empty tag set", func(t *testing.T) {
		results, err := f.store.ApplyTags(context.Background(), []TagUpdate{
			{SkillID: "deploy", Tags: []string{"", "  "}},
		})
		require.Error(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tags cannot be empty", results[0].Error)
	})

	t.Run("partial failure still applies the rest", func(t *testing.T) {
		results, err := f.store.ApplyTags(context.Background(), []TagUpdate{
			{SkillID: "nope", Tags: []string{"x"}},
			{SkillID: "deploy", Tags: []string{"applied"}},
		})
		require.Error(t, err)
		require.Len(t, results, 2)
		assert.NotEmpty(t, results[0].Error)
		assert.Empty(t, results[1].Error)

		entry, _ := f.store.Snapshot().Get("deploy")
		assert.Equal(t, []string{"applied"}, entry.Tags)
	})
}
