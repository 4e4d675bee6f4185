// Package frontmatter parses and rewrites the YAML frontmatter block
// of SKILL.md files. Parsing uses goldmark with the goldmark-meta
// extension; rewriting is textual so the rest of the file is preserved
// byte for byte.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// ErrorKind classifies parse failures.
type ErrorKind string

const (
	// KindMissing means no opening frontmatter delimiter was found.
	KindMissing ErrorKind = "missing_frontmatter"
	// KindUnterminated means the opening delimiter had no closing one.
	KindUnterminated ErrorKind = "unterminated_frontmatter"
	// KindMalformed means the block is not a valid YAML mapping.
	KindMalformed ErrorKind = "malformed_frontmatter"
	// KindMissingField means a required field is absent or empty.
	KindMissingField ErrorKind = "missing_required_field"
)

// Error is a classified frontmatter failure. Field is set for
// KindMissingField.
type Error struct {
	Kind  ErrorKind
	Field string
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	case KindMalformed:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return string(e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Parsed holds the result of a successful parse. Extra carries any
// frontmatter fields beyond the known schema, stringified but not
// interpreted.
type Parsed struct {
	Name        string
	Description string
	Tags        []string
	Extra       map[string]string
	Body        string
}

const delimiter = "---"

// Parse splits raw SKILL.md content into frontmatter and body and
// validates the required fields.
func Parse(content []byte) (*Parsed, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")

	if !strings.HasPrefix(text, delimiter) {
		return nil, &Error{Kind: KindMissing}
	}
	if _, _, ok := splitBlock(text); !ok {
		return nil, &Error{Kind: KindUnterminated}
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert([]byte(text), &buf, parser.WithContext(pctx)); err != nil {
		return nil, &Error{Kind: KindMalformed, Cause: err}
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, &Error{Kind: KindMalformed, Cause: err}
	}
	if metaData == nil {
		return nil, &Error{Kind: KindMissing}
	}

	parsed := &Parsed{
		Body: extractBody(text),
	}
	for key, value := range metaData {
		switch key {
		case "name":
			parsed.Name = strings.TrimSpace(stringify(value))
		case "description":
			parsed.Description = strings.TrimSpace(stringify(value))
		case "tags":
			parsed.Tags = coerceTags(value)
		default:
			if parsed.Extra == nil {
				parsed.Extra = make(map[string]string)
			}
			parsed.Extra[key] = stringify(value)
		}
	}

	if parsed.Name == "" {
		return nil, &Error{Kind: KindMissingField, Field: "name"}
	}
	if parsed.Description == "" {
		return nil, &Error{Kind: KindMissingField, Field: "description"}
	}

	return parsed, nil
}

// splitBlock separates the frontmatter lines from the body. The bool
// result is false when the closing delimiter is missing.
func splitBlock(text string) (front []string, body []string, ok bool) {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			return lines[1:i], lines[i+1:], true
		}
	}
	return nil, nil, false
}

func extractBody(text string) string {
	_, body, ok := splitBlock(text)
	if !ok {
		return text
	}
	return strings.TrimLeft(strings.Join(body, "\n"), "\n")
}

// coerceTags accepts a scalar or a sequence, preserving case and
// dropping duplicates and empty values.
func coerceTags(value interface{}) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil
	case []interface{}:
		for _, item := range v {
			raw = append(raw, stringify(item))
		}
	default:
		raw = append(raw, stringify(v))
	}

	return NormalizeTags(raw)
}

// NormalizeTags trims whitespace and drops empty values and
// duplicates, preserving case and first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var tags []string
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderTagsLine formats the tags frontmatter line in YAML flow style.
func renderTagsLine(tags []string) (string, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, tag := range tags {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Value: tag,
		})
	}
	rendered, err := yaml.Marshal(node)
	if err != nil {
		return "", err
	}
	return "tags: " + strings.TrimRight(string(rendered), "\n"), nil
}
