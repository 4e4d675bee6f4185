// Package query answers tree-navigation, search, and detail-lookup
// requests. Every operation grabs one snapshot reference up front, so
// its results stay consistent even when a rebuild completes while the
// request is being served. The engine never touches the filesystem.
package query

import (
	"sort"
	"strings"

	"github.com/jingkaihe/skillcortex/pkg/index"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// Engine serves read queries against the store's published snapshots.
type Engine struct {
	store *index.Store
}

// NewEngine creates a query engine bound to the given index store.
func NewEngine(store *index.Store) *Engine {
	return &Engine{store: store}
}

// Tree returns the logical hierarchy of skill ids under the given
// slash-separated path prefix. An empty prefix returns the full tree;
// a prefix matching nothing returns an empty tree, not an error.
func (e *Engine) Tree(pathPrefix string) *skilltypes.TreeNode {
	snapshot := e.store.Snapshot()
	root := buildTree(snapshot.Valid())

	segments := splitPath(pathPrefix)
	node := root
	for _, segment := range segments {
		child := findChild(node, segment)
		if child == nil {
			return &skilltypes.TreeNode{
				Name: segments[len(segments)-1],
				Path: strings.Join(segments, "/"),
			}
		}
		node = child
	}
	return node
}

// match ranks are ordered: a name hit outranks a description hit,
// which outranks a body-only hit.
const (
	rankName = iota
	rankDescription
	rankBody
	rankNone
)

// Search returns summaries of valid entries matching the optional
// free-text query (case-insensitive substring over name, description
// and body) and carrying every requested tag. Results are ordered by
// match rank, ties broken lexicographically by id.
func (e *Engine) Search(query string, filterTags []string) []skilltypes.Summary {
	snapshot := e.store.Snapshot()
	needle := strings.ToLower(strings.TrimSpace(query))

	type ranked struct {
		rank    int
		summary skilltypes.Summary
	}
	var matches []ranked

	for _, entry := range snapshot.Valid() {
		if !hasAllTags(entry.Tags, filterTags) {
			continue
		}
		rank := rankEntry(entry, needle)
		if rank == rankNone {
			continue
		}
		matches = append(matches, ranked{rank: rank, summary: entry.Summarize()})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].summary.ID < matches[j].summary.ID
	})

	summaries := make([]skilltypes.Summary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, m.summary)
	}
	return summaries
}

// Details returns the full entry for the given id, including the body.
// Unknown and invalid ids both yield NotFoundError.
func (e *Engine) Details(skillID string) (*skilltypes.Entry, error) {
	snapshot := e.store.Snapshot()
	entry, ok := snapshot.Get(skillID)
	if !ok || !entry.Valid {
		return nil, &skilltypes.NotFoundError{ID: skillID}
	}
	return entry, nil
}

func rankEntry(entry *skilltypes.Entry, needle string) int {
	if needle == "" {
		return rankName
	}
	switch {
	case strings.Contains(strings.ToLower(entry.Name), needle):
		return rankName
	case strings.Contains(strings.ToLower(entry.Description), needle):
		return rankDescription
	case strings.Contains(strings.ToLower(entry.Body), needle):
		return rankBody
	default:
		return rankNone
	}
}

// hasAllTags reports whether entry tags form a superset of the filter.
func hasAllTags(entryTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	set := make(map[string]bool, len(entryTags))
	for _, tag := range entryTags {
		set[tag] = true
	}
	for _, tag := range filter {
		if !set[strings.TrimSpace(tag)] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	var segments []string
	for _, segment := range strings.Split(p, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func findChild(node *skilltypes.TreeNode, name string) *skilltypes.TreeNode {
	for _, child := range node.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// buildTree assembles the hierarchy from entry id segments. The entry
// attaches as a leaf under the node of its parent segments, named by
// its last segment; children and skills are sorted at every level.
func buildTree(entries []*skilltypes.Entry) *skilltypes.TreeNode {
	root := &skilltypes.TreeNode{Name: "/", Path: ""}
	index := map[string]*skilltypes.TreeNode{"": root}

	for _, entry := range entries {
		node := root
		for _, segment := range entry.CategoryPath() {
			childPath := node.ChildPath(segment)
			child, ok := index[childPath]
			if !ok {
				child = &skilltypes.TreeNode{Name: segment, Path: childPath}
				node.Children = append(node.Children, child)
				index[childPath] = child
			}
			node = child
		}
		node.Skills = append(node.Skills, entry.Summarize())
	}

	var sortNode func(n *skilltypes.TreeNode)
	sortNode = func(n *skilltypes.TreeNode) {
		sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
		sort.Slice(n.Skills, func(i, j int) bool { return n.Skills[i].ID < n.Skills[j].ID })
		for _, child := range n.Children {
			sortNode(child)
		}
	}
	sortNode(root)
	return root
}
