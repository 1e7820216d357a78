package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawParameter struct {
	Description string    `yaml:"description"`
	Type        string    `yaml:"type"`
	Default     yaml.Node `yaml:"default"`
}

type rawSource struct {
	Description string                 `yaml:"description"`
	Metadata    map[string]interface{} `yaml:"metadata"`
	Args        struct {
		Query string `yaml:"query"`
		Table string `yaml:"table"`
	} `yaml:"args"`
	Parameters map[string]rawParameter `yaml:"parameters"`
}

type rawCatalog struct {
	Metadata Metadata `yaml:"metadata"`
	Defaults struct {
		Metadata   map[string]interface{}  `yaml:"metadata"`
		Parameters map[string]rawParameter `yaml:"parameters"`
	} `yaml:"defaults"`
	Sources map[string]rawSource `yaml:"sources"`
}

// Parse decodes a catalog document. path is used for naming and error messages only.
func Parse(data []byte, path string) (*QueryCatalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, path, err)
	}

	if len(raw.Sources) == 0 {
		return nil, fmt.Errorf("%w: %s: no sources defined", ErrInvalidCatalog, path)
	}

	defaults, err := convertParameters(raw.Defaults.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: defaults: %w", ErrInvalidCatalog, path, err)
	}

	cat := &QueryCatalog{
		Name:     catalogName(path),
		Path:     path,
		Metadata: raw.Metadata,
		Defaults: Defaults{
			Metadata:   raw.Defaults.Metadata,
			Parameters: defaults,
		},
		Sources: make(map[string]*SourceTemplate, len(raw.Sources)),
	}

	for name, rs := range raw.Sources {
		query := strings.TrimSpace(rs.Args.Query)
		if query == "" {
			return nil, fmt.Errorf("%w: %s: %s: %w", ErrInvalidCatalog, path, name, ErrEmptyQuery)
		}

		params, convErr := convertParameters(rs.Parameters)
		if convErr != nil {
			return nil, fmt.Errorf("%w: %s: %s: %w", ErrInvalidCatalog, path, name, convErr)
		}

		cat.Sources[name] = &SourceTemplate{
			Name:        name,
			Description: rs.Description,
			Metadata:    rs.Metadata,
			Template:    query,
			Table:       strings.TrimSpace(rs.Args.Table),
			Parameters:  params,
		}
	}

	return cat, nil
}

func convertParameters(raw map[string]rawParameter) (map[string]*ParameterSpec, error) {
	params := make(map[string]*ParameterSpec, len(raw))

	for name, rp := range raw {
		typ := ParameterType(strings.ToLower(strings.TrimSpace(rp.Type)))
		if typ == "" {
			typ = TypeString
		}
		if !typ.Valid() {
			return nil, fmt.Errorf("%w: %s has type %q", ErrInvalidParameterType, name, rp.Type)
		}

		spec := &ParameterSpec{
			Name:        name,
			Description: rp.Description,
			Type:        typ,
		}

		// An absent key leaves a zero node; an explicit null means no default
		if rp.Default.Kind != 0 && rp.Default.Tag != "!!null" {
			var value interface{}
			if err := rp.Default.Decode(&value); err != nil {
				return nil, fmt.Errorf("parameter %s default: %w", name, err)
			}
			spec.Default = value
			spec.HasDefault = true
		}

		params[name] = spec
	}

	return params, nil
}

func catalogName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
