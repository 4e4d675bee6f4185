package skill

import (
	"errors"
	"fmt"
)

// ProblemKind classifies diagnostics collected during reconciliation.
// Problems are advisory: they are recorded on the rebuild result and
// never abort a reconciliation pass.
type ProblemKind string

const (
	// ProblemScanWarning covers recoverable scanner issues such as a
	// configured root that does not exist.
	ProblemScanWarning ProblemKind = "scan_warning"
	// ProblemDuplicateID is recorded when two roots produce the same
	// skill id; the earlier root wins.
	ProblemDuplicateID ProblemKind = "duplicate_id"
	// ProblemFrontmatter marks a skill whose SKILL.md failed to parse.
	ProblemFrontmatter ProblemKind = "frontmatter"
	// ProblemUnknownTags marks a skill carrying tags that are not in
	// the tag registry. Advisory only, never excludes the skill.
	ProblemUnknownTags ProblemKind = "unknown_tags"
	// ProblemCacheCorrupt is recorded once when the persisted cache
	// cannot be read and reconciliation starts from an empty cache.
	ProblemCacheCorrupt ProblemKind = "cache_corrupt"
	// ProblemPersist marks a failure to write a persisted artifact.
	// The in-memory snapshot still publishes.
	ProblemPersist ProblemKind = "persist"
)

// Problem is one recorded diagnostic.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	SkillID string      `json:"skillId,omitempty"`
	Path    string      `json:"path,omitempty"`
	Detail  string      `json:"detail"`
}

func (p Problem) String() string {
	switch {
	case p.SkillID != "":
		return fmt.Sprintf("%s: %s: %s", p.Kind, p.SkillID, p.Detail)
	case p.Path != "":
		return fmt.Sprintf("%s: %s: %s", p.Kind, p.Path, p.Detail)
	default:
		return fmt.Sprintf("%s: %s", p.Kind, p.Detail)
	}
}

// NotFoundError is returned by detail lookups for unknown or invalid
// skill ids.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skill %q not found", e.ID)
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
