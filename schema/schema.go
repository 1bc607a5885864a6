// Package schema holds the data types shared by the grading pipeline.
package schema

import (
	"slices"
	"strings"
)

// ParamSpec describes one documented parameter of an operation.
type ParamSpec struct {
	Name     string        `json:"name" yaml:"name"`
	In       ParamLocation `json:"in" yaml:"in"`
	Required bool          `json:"required" yaml:"required"`
}

// OperationTemplate is the reusable request shape of one documented operation.
// It is built once from the document and never modified afterwards.
type OperationTemplate struct {
	ID             string          `json:"id" yaml:"id"`
	Method         string          `json:"method" yaml:"method"`
	PathPattern    string          `json:"path_pattern" yaml:"path_pattern"`
	Summary        string          `json:"summary,omitempty" yaml:"summary,omitempty"`
	ParamLocations []ParamLocation `json:"param_locations" yaml:"param_locations"`
	Parameters     []ParamSpec     `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	HasBody        bool            `json:"has_body" yaml:"has_body"`
	BodyRequired   bool            `json:"body_required" yaml:"body_required"`
}

// Accepts reports whether the template declares the given parameter location.
func (t OperationTemplate) Accepts(loc ParamLocation) bool {
	return slices.Contains(t.ParamLocations, loc)
}

// Placeholders returns the {name} placeholders of the path pattern in order of appearance.
func (t OperationTemplate) Placeholders() []string {
	var names []string
	rest := t.PathPattern
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return names
		}
		names = append(names, rest[start+1:start+end])
		rest = rest[start+end+1:]
	}
}

// Catalog maps operation identifiers to their templates.
type Catalog map[string]OperationTemplate

// Lookup returns the template for an operation id.
func (c Catalog) Lookup(id string) (OperationTemplate, bool) {
	t, ok := c[id]
	return t, ok
}

// IDs returns all operation ids in lexical order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Templates returns all templates ordered by path, then method.
func (c Catalog) Templates() []OperationTemplate {
	out := make([]OperationTemplate, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b OperationTemplate) int {
		if n := strings.Compare(a.PathPattern, b.PathPattern); n != 0 {
			return n
		}
		return strings.Compare(a.Method, b.Method)
	})
	return out
}
