package frontmatter

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// RewriteTags replaces (or inserts) the tags field of the file's
// frontmatter, leaving every other line untouched. The file is written
// to a temporary sibling and renamed so a crash can never leave a
// half-written SKILL.md behind.
func RewriteTags(path string, tags []string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read skill file")
	}

	text := string(content)
	if !strings.HasPrefix(strings.TrimPrefix(text, "\ufeff"), delimiter) {
		return &Error{Kind: KindMissing}
	}

	// Work on LF internally and restore the file's own line ending on
	// write, so a CRLF file never comes back with mixed endings.
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}

	lines := strings.Split(text, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return &Error{Kind: KindUnterminated}
	}

	tagsLine, err := renderTagsLine(tags)
	if err != nil {
		return errors.Wrap(err, "failed to render tags")
	}

	var updated []string
	updated = append(updated, lines[0])
	replaced := false
	inTagsBlock := false
	for _, line := range lines[1:end] {
		trimmed := strings.TrimSpace(line)
		if inTagsBlock {
			if strings.HasPrefix(trimmed, "-") {
				continue // swallow the old block-style tag items
			}
			inTagsBlock = false
		}
		if strings.HasPrefix(strings.ToLower(trimmed), "tags:") {
			updated = append(updated, tagsLine)
			replaced = true
			inTagsBlock = strings.TrimSpace(trimmed[len("tags:"):]) == ""
			continue
		}
		updated = append(updated, line)
	}
	if !replaced {
		updated = append(updated, tagsLine)
	}
	updated = append(updated, lines[end:]...)

	return writeAtomic(path, []byte(strings.Join(updated, eol)))
}

// writeAtomic writes data to a temporary file next to path and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary file")
	}
	return nil
}
