// Package tags maintains the registry of allowed skill tags. The
// registry is persisted as a human-editable YAML mapping of tag name
// to description; entry order is preserved so the file stays diffable.
// Tag validation is advisory: unknown tags are reported as warnings
// and never exclude a skill from the index.
package tags

import (
	"bytes"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"gopkg.in/yaml.v3"
)

// Tag is one allowed tag with its human-readable description.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the allowed-tag set. Mutations persist to the backing
// file before they are visible to readers.
type Registry struct {
	path string

	mu           sync.RWMutex
	order        []string
	descriptions map[string]string
}

// Load reads the allowed-tags file. A missing file yields an empty
// registry; that must not block indexing.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path:         path,
		descriptions: make(map[string]string),
	}

	data, err := lockedfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrap(err, "failed to read tags file")
	}

	if err := r.decode(data); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tags file %s", path)
	}
	return r, nil
}

// decode parses the YAML mapping while preserving key order, which
// yaml.Unmarshal into a map would lose.
func (r *Registry) decode(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return errors.New("tags file must be a mapping of tag name to description")
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		if name == "" {
			continue
		}
		if _, exists := r.descriptions[name]; exists {
			return errors.Errorf("duplicate tag %q", name)
		}
		r.order = append(r.order, name)
		r.descriptions[name] = mapping.Content[i+1].Value
	}
	return nil
}

// Path returns the backing file location.
func (r *Registry) Path() string { return r.path }

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Has reports whether the tag is registered. Names are case-sensitive.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptions[name]
	return ok
}

// List returns all tags with descriptions in insertion order.
func (r *Registry) List() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tag, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, Tag{Name: name, Description: r.descriptions[name]})
	}
	return list
}

// Unknown returns the subset of tags not present in the registry, in
// input order. An empty registry treats every tag as unknown.
func (r *Registry) Unknown(tags []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var unknown []string
	for _, tag := range tags {
		if _, ok := r.descriptions[tag]; !ok {
			unknown = append(unknown, tag)
		}
	}
	return unknown
}

// Add registers a new tag. A brand-new tag requires a non-empty
// description.
func (r *Registry) Add(name, description string) error {
	if name == "" {
		return errors.New("tag name cannot be empty")
	}
	if description == "" {
		return errors.Errorf("tag %q requires a non-empty description", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptions[name]; exists {
		return errors.Errorf("tag %q already exists", name)
	}
	r.order = append(r.order, name)
	r.descriptions[name] = description
	return r.save()
}

// Update changes the description of an existing tag.
func (r *Registry) Update(name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptions[name]; !exists {
		return errors.Errorf("tag %q is not registered", name)
	}
	r.descriptions[name] = description
	return r.save()
}

// Remove deletes a tag from the registry. Skills still carrying the
// tag keep it; it simply shows as unknown on the next validation pass.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptions[name]; !exists {
		return errors.Errorf("tag %q is not registered", name)
	}
	delete(r.descriptions, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.save()
}

// save persists the registry under a file lock. Callers hold r.mu.
func (r *Registry) save() error {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range r.order {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: r.descriptions[name]},
		)
	}
	data, err := yaml.Marshal(mapping)
	if err != nil {
		return errors.Wrap(err, "failed to encode tags file")
	}
	if err := lockedfile.Write(r.path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrap(err, "failed to write tags file")
	}
	return nil
}
