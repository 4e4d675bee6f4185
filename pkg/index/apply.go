package index

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillcortex/pkg/frontmatter"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/scanner"
	"github.com/jingkaihe/skillcortex/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// TagUpdate replaces one skill's tag set.
type TagUpdate struct {
	SkillID string   `json:"skillId"`
	Tags    []string `json:"tags"`
}

// TagUpdateResult reports the outcome of one update. Unknown lists
// tags that are not in the registry; they are applied anyway since tag
// validation is advisory.
type TagUpdateResult struct {
	SkillID string   `json:"skillId"`
	Tags    []string `json:"tags,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ApplyTags replaces the tag sets of the named skills, rewriting each
// skill's SKILL.md frontmatter in place so subsequent rebuilds see the
// same tags. The whole pass is serialized with reconciliation: an
// apply is reflected either in the snapshot a concurrent rebuild is
// about to publish (the rebuild re-reads the rewritten files) or in
// the snapshot published here, never lost.
func (s *Store) ApplyTags(ctx context.Context, updates []TagUpdate) ([]TagUpdateResult, error) {
	if len(updates) == 0 {
		return nil, errors.New("no tag updates given")
	}

	var results []TagUpdateResult
	err := telemetry.WithSpan(ctx, "index.apply_tags", func(ctx context.Context) error {
		var err error
		results, err = s.applyTags(ctx, updates)
		return err
	}, attribute.Int("updates", len(updates)))
	return results, err
}

func (s *Store) applyTags(ctx context.Context, updates []TagUpdate) ([]TagUpdateResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current := s.snapshot.Load()
	entries := make(map[string]*skilltypes.Entry, current.Len())
	for id, entry := range current.entries {
		entries[id] = entry
	}

	var errs *multierror.Error
	results := make([]TagUpdateResult, 0, len(updates))
	var appliedIDs []string

	for _, update := range updates {
		result := TagUpdateResult{SkillID: update.SkillID}

		newTags := frontmatter.NormalizeTags(update.Tags)
		entry, ok := entries[update.SkillID]
		switch {
		case update.SkillID == "":
			result.Error = "missing skill id"
		case len(newTags) == 0:
			result.Error = "tags cannot be empty"
		case !ok || !entry.Valid:
			result.Error = (&skilltypes.NotFoundError{ID: update.SkillID}).Error()
		}
		if result.Error != "" {
			errs = multierror.Append(errs, errors.Errorf("%s: %s", update.SkillID, result.Error))
			results = append(results, result)
			continue
		}

		if err := frontmatter.RewriteTags(entry.SkillFile(), newTags); err != nil {
			result.Error = err.Error()
			errs = multierror.Append(errs, errors.Wrapf(err, "failed to rewrite tags for %s", update.SkillID))
			results = append(results, result)
			continue
		}

		updated := entry.Clone()
		updated.Tags = newTags
		updated.TagIssues = s.tagIssues(newTags)
		if fingerprint, err := scanner.FingerprintFile(updated.SkillFile()); err == nil {
			updated.Fingerprint = fingerprint
		}
		entries[update.SkillID] = updated

		result.Tags = newTags
		result.Unknown = s.registry.Unknown(newTags)
		results = append(results, result)
		appliedIDs = append(appliedIDs, update.SkillID)

		logger.G(ctx).WithFields(map[string]interface{}{
			"skill": update.SkillID,
			"tags":  newTags,
		}).Info("skill tags updated")
	}

	if len(appliedIDs) > 0 {
		problems := patchTagProblems(current.problems, entries, appliedIDs)
		snapshot := newSnapshot(current.Generation+1, time.Now(), entries, problems)
		s.snapshot.Store(snapshot)
		if err := s.persist(ctx, snapshot); err != nil {
			logger.G(ctx).WithError(err).Error("failed to persist index cache after tag apply")
			errs = multierror.Append(errs, err)
		}
	}

	return results, errs.ErrorOrNil()
}

// patchTagProblems replaces the tag-issue problems of the skills an
// apply rewrote so the published problems list matches the updated
// entries instead of the last rebuild.
func patchTagProblems(problems []skilltypes.Problem, entries map[string]*skilltypes.Entry, appliedIDs []string) []skilltypes.Problem {
	touched := make(map[string]bool, len(appliedIDs))
	for _, id := range appliedIDs {
		touched[id] = true
	}

	patched := make([]skilltypes.Problem, 0, len(problems))
	for _, problem := range problems {
		if problem.Kind == skilltypes.ProblemUnknownTags && touched[problem.SkillID] {
			continue
		}
		patched = append(patched, problem)
	}
	for _, id := range appliedIDs {
		entry := entries[id]
		if len(entry.TagIssues) > 0 {
			patched = append(patched, skilltypes.Problem{
				Kind:    skilltypes.ProblemUnknownTags,
				SkillID: id,
				Detail:  strings.Join(entry.TagIssues, "; "),
			})
		}
	}
	return patched
}
