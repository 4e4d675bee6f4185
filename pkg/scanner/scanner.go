// Package scanner enumerates candidate skill directories under the
// configured root directories. It is a pure filesystem enumeration
// step: no parsing, no validation. Traversal order is deterministic
// (lexicographic per level) so id assignment and duplicate resolution
// downstream are reproducible across platforms.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillcortex/pkg/logger"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// Candidate is one discovered skill directory with its change
// fingerprint. ID is the slash-joined path of the directory relative
// to its root.
type Candidate struct {
	ID           string
	Root         string
	RelativePath string
	Fingerprint  string
}

// Result is the output of one scan pass. Candidates appear in root
// order, then lexicographic directory order within each root.
type Result struct {
	Candidates []Candidate
	Warnings   []skilltypes.Problem
	// RootsScanned counts roots whose directory could actually be
	// read. A root that exists but denies reads does not count.
	RootsScanned int
}

// Scanner walks an ordered list of root directories.
type Scanner struct {
	roots  []string
	ignore []string
}

// Option configures a Scanner.
type Option func(*Scanner) error

// WithIgnoreGlobs sets doublestar patterns matched against the
// slash-joined relative path of each directory; matching directories
// are skipped entirely.
func WithIgnoreGlobs(globs ...string) Option {
	return func(s *Scanner) error {
		for _, g := range globs {
			if !doublestar.ValidatePattern(g) {
				return errors.Errorf("invalid ignore pattern %q", g)
			}
		}
		s.ignore = globs
		return nil
	}
}

// New creates a Scanner over the given roots. Root order is
// significant: the index store resolves duplicate ids in favor of the
// earlier root.
func New(roots []string, opts ...Option) (*Scanner, error) {
	s := &Scanner{roots: roots}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Roots returns the configured roots in priority order.
func (s *Scanner) Roots() []string {
	return s.roots
}

// Scan enumerates all candidate skill directories. Roots that do not
// exist produce a warning, never an error. Symbolic links are not
// followed.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, root := range s.roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			logger.G(ctx).WithField("root", root).Debug("skipping missing root")
			result.Warnings = append(result.Warnings, skilltypes.Problem{
				Kind:   skilltypes.ProblemScanWarning,
				Path:   root,
				Detail: "root directory does not exist",
			})
			continue
		}

		rootRead, err := s.scanRoot(ctx, root, result)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan root %s", root)
		}
		if rootRead {
			result.RootsScanned++
		}
	}

	return result, nil
}

// scanRoot walks one root. filepath.WalkDir visits directory entries
// in lexical order, which gives the deterministic traversal the index
// relies on. The returned bool reports whether the root directory
// itself could be read; a root that exists but fails ReadDir does not
// count as scanned.
func (s *Scanner) scanRoot(ctx context.Context, root string, result *Result) (bool, error) {
	rootRead := true
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Warnings = append(result.Warnings, skilltypes.Problem{
				Kind:   skilltypes.ProblemScanWarning,
				Path:   path,
				Detail: err.Error(),
			})
			if path == root {
				rootRead = false
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		// A symlinked subdirectory surfaces as a symlink entry, not a
		// directory, so WalkDir never descends into it. That prevents
		// traversal cycles.

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if relSlash != "." && s.ignored(relSlash) {
			logger.G(ctx).WithField("path", relSlash).Debug("ignoring directory")
			return fs.SkipDir
		}

		skillFile := filepath.Join(path, skilltypes.SkillFileName)
		fi, err := os.Lstat(skillFile)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}

		result.Candidates = append(result.Candidates, Candidate{
			ID:           relSlash,
			Root:         root,
			RelativePath: relSlash,
			Fingerprint:  Fingerprint(fi),
		})
		return nil
	})
	return rootRead, err
}

func (s *Scanner) ignored(relSlash string) bool {
	for _, g := range s.ignore {
		if ok, err := doublestar.Match(g, relSlash); err == nil && ok {
			return true
		}
	}
	return false
}

// Fingerprint derives a cheap change marker from the SKILL.md file
// size and modification time.
func Fingerprint(fi os.FileInfo) string {
	return fmt.Sprintf("%d:%d", fi.Size(), fi.ModTime().UnixNano())
}

// FingerprintFile stats path and returns its fingerprint.
func FingerprintFile(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to stat skill file")
	}
	return Fingerprint(fi), nil
}
