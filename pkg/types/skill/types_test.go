package skill

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryPath(t *testing.T) {
	entry := &Entry{ID: "engineering/backend/deploy"}
	assert.Equal(t, []string{"engineering", "backend"}, entry.CategoryPath())

	top := &Entry{ID: "deploy"}
	assert.Nil(t, top.CategoryPath())
}

func TestSkillFile(t *testing.T) {
	entry := &Entry{Root: "/skills", RelativePath: "a/b"}
	assert.Equal(t, filepath.Join("/skills", "a", "b", SkillFileName), entry.SkillFile())
}

func TestCloneIsIndependent(t *testing.T) {
	entry := &Entry{
		ID:    "x",
		Tags:  []string{"a"},
		Extra: map[string]string{"k": "v"},
	}
	clone := entry.Clone()
	clone.Tags[0] = "changed"
	clone.Extra["k"] = "changed"

	assert.Equal(t, "a", entry.Tags[0])
	assert.Equal(t, "v", entry.Extra["k"])
}

func TestDescriptionSnapshot(t *testing.T) {
	short := "a short description"
	assert.Equal(t, short, DescriptionSnapshot(short))

	assert.Equal(t, "collapsed whitespace", DescriptionSnapshot("  collapsed \n whitespace "))

	long := strings.Repeat("word ", 40)
	snapshot := DescriptionSnapshot(long)
	assert.Len(t, strings.Fields(snapshot), 30)
}

func TestSummarizeCapsDescription(t *testing.T) {
	entry := &Entry{
		ID:          "x",
		Name:        "x",
		Description: strings.Repeat("verbose ", 50),
		Tags:        []string{"a"},
	}
	summary := entry.Summarize()
	assert.Len(t, strings.Fields(summary.Description), 30)
	assert.Equal(t, []string{"a"}, summary.Tags)
}

func TestTreeNodeChildPath(t *testing.T) {
	root := &TreeNode{Path: ""}
	assert.Equal(t, "a", root.ChildPath("a"))

	nested := &TreeNode{Path: "a/b"}
	assert.Equal(t, "a/b/c", nested.ChildPath("c"))
}
