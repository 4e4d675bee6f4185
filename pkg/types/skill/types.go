// Package skill defines the shared data model for the skill index:
// indexed entries, diagnostics, tree nodes, and rebuild statistics.
// Skills are directories containing a SKILL.md file with YAML
// frontmatter describing the skill plus free-form instructions.
package skill

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// SkillFileName is the descriptor file that marks a directory as a skill.
const SkillFileName = "SKILL.md"

// Entry is one indexed skill. Entries are built during reconciliation
// and are treated as immutable once published in a snapshot.
type Entry struct {
	ID           string            `json:"id"`
	Root         string            `json:"root"`
	RelativePath string            `json:"relativePath"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Tags         []string          `json:"tags,omitempty"`
	Body         string            `json:"body,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
	Fingerprint  string            `json:"fingerprint"`
	Valid        bool              `json:"valid"`
	Reason       string            `json:"reason,omitempty"`
	TagIssues    []string          `json:"tagIssues,omitempty"`
}

// SkillFile returns the absolute path of the entry's SKILL.md file.
func (e *Entry) SkillFile() string {
	return filepath.Join(e.Root, filepath.FromSlash(e.RelativePath), SkillFileName)
}

// CategoryPath returns the id segments above the skill's own directory.
func (e *Entry) CategoryPath() []string {
	segments := strings.Split(e.ID, "/")
	if len(segments) <= 1 {
		return nil
	}
	return segments[:len(segments)-1]
}

// Clone returns a deep copy of the entry so a published snapshot can
// never be mutated through a shared pointer.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Tags = append([]string(nil), e.Tags...)
	clone.TagIssues = append([]string(nil), e.TagIssues...)
	if e.Extra != nil {
		clone.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// Summary is the search/tree facing view of an entry. The description
// is capped to a snapshot so listings stay small.
type Summary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	TagIssues   []string `json:"tagIssues,omitempty"`
}

// descriptionSnapshotWords caps summary descriptions at this many words.
const descriptionSnapshotWords = 30

// Summarize builds the summary view of the entry.
func (e *Entry) Summarize() Summary {
	return Summary{
		ID:          e.ID,
		Name:        e.Name,
		Description: DescriptionSnapshot(e.Description),
		Tags:        append([]string(nil), e.Tags...),
		TagIssues:   append([]string(nil), e.TagIssues...),
	}
}

// DescriptionSnapshot returns the description truncated to a fixed
// number of words with whitespace collapsed.
func DescriptionSnapshot(description string) string {
	words := strings.Fields(description)
	if len(words) > descriptionSnapshotWords {
		words = words[:descriptionSnapshotWords]
	}
	return strings.Join(words, " ")
}

// TreeNode is one level of the logical skill hierarchy derived from id
// segments. Children and Skills are sorted lexicographically.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Children []*TreeNode `json:"children,omitempty"`
	Skills   []Summary   `json:"skills,omitempty"`
}

// ChildPath joins a child segment onto the node's path.
func (n *TreeNode) ChildPath(segment string) string {
	if n.Path == "" {
		return segment
	}
	return path.Join(n.Path, segment)
}

// RebuildStats summarizes one reconciliation pass.
type RebuildStats struct {
	RunID      string        `json:"runId"`
	Generation int64         `json:"generation"`
	Scanned    int           `json:"scanned"`
	Reused     int           `json:"reused"`
	Reparsed   int           `json:"reparsed"`
	Dropped    int           `json:"dropped"`
	Invalid    int           `json:"invalid"`
	Duration   time.Duration `json:"duration"`
	BuiltAt    time.Time     `json:"builtAt"`
}
