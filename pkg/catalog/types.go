// Package catalog loads declarative query catalogs: named query sources with
// parameter declarations and global defaults.
package catalog

import "sort"

// ParameterType tags the kind of value a parameter carries
type ParameterType string

const (
	// TypeString is a plain string parameter
	TypeString ParameterType = "str"
	// TypeDatetime is a timestamp; integer values are day offsets from now
	TypeDatetime ParameterType = "datetime"
	// TypeInt is an integer parameter
	TypeInt ParameterType = "int"
	// TypeList is a list of values rendered by the dialect's list formatter
	TypeList ParameterType = "list"
	// TypeBool is a boolean parameter
	TypeBool ParameterType = "bool"
)

// Valid reports whether the type is one the resolver knows how to format
func (t ParameterType) Valid() bool {
	switch t {
	case TypeString, TypeDatetime, TypeInt, TypeList, TypeBool:
		return true
	default:
		return false
	}
}

// ParameterSpec declares a single substitution parameter
type ParameterSpec struct {
	Name        string        `yaml:"-" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Type        ParameterType `yaml:"type" json:"type"`
	Default     interface{}   `yaml:"default" json:"default,omitempty"`
	// HasDefault distinguishes an explicit empty default ('') from no default at all
	HasDefault bool `yaml:"-" json:"hasDefault"`
}

// Metadata describes a catalog document
type Metadata struct {
	Version          int      `yaml:"version" json:"version"`
	Description      string   `yaml:"description" json:"description"`
	DataEnvironments []string `yaml:"data_environments" json:"dataEnvironments,omitempty"`
	DataFamilies     []string `yaml:"data_families" json:"dataFamilies,omitempty"`
	Tags             []string `yaml:"tags" json:"tags,omitempty"`
}

// Defaults holds catalog-wide metadata and parameters inherited by every source
type Defaults struct {
	Metadata   map[string]interface{}    `json:"metadata,omitempty"`
	Parameters map[string]*ParameterSpec `json:"parameters"`
}

// SourceTemplate is a named, reusable query template plus its parameter
// declarations. Table, from args.table, names the backend table the query
// reads and is checked against the backend schema before dispatch.
type SourceTemplate struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Metadata    map[string]interface{}    `json:"metadata,omitempty"`
	Template    string                    `json:"template"`
	Table       string                    `json:"table,omitempty"`
	Parameters  map[string]*ParameterSpec `json:"parameters"`
}

// QueryCatalog is a parsed catalog document
type QueryCatalog struct {
	// Name identifies the catalog, derived from its file name
	Name     string                     `json:"name"`
	Path     string                     `json:"path,omitempty"`
	Metadata Metadata                   `json:"metadata"`
	Defaults Defaults                   `json:"defaults"`
	Sources  map[string]*SourceTemplate `json:"sources"`
}

// Source returns the named source template
func (c *QueryCatalog) Source(name string) (*SourceTemplate, bool) {
	if c == nil {
		return nil, false
	}

	src, ok := c.Sources[name]

	return src, ok
}

// SourceNames returns the catalog's source names in sorted order
func (c *QueryCatalog) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// EffectiveParameters merges global defaults with the source's own parameters.
// Source-local specs win on name collision.
func (c *QueryCatalog) EffectiveParameters(src *SourceTemplate) map[string]*ParameterSpec {
	params := make(map[string]*ParameterSpec, len(c.Defaults.Parameters)+len(src.Parameters))
	for name, spec := range c.Defaults.Parameters {
		params[name] = spec
	}
	for name, spec := range src.Parameters {
		params[name] = spec
	}

	return params
}

// IsLocal reports whether the named parameter is declared on the source itself
func (s *SourceTemplate) IsLocal(name string) bool {
	_, ok := s.Parameters[name]
	return ok
}
