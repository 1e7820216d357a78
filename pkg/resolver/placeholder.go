package resolver

import (
	"regexp"
	"strings"
)

// Matches brace escapes or a {name} placeholder. Braces around anything
// other than an identifier are left as literal text.
var placeholderPattern = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the distinct placeholder names in a template, in order of first use
func Placeholders(template string) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)

	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// substitute replaces every placeholder with its value. Names without a
// value are returned as undeclared and the output is discarded by the caller.
func substitute(template string, values map[string]string) (string, []string) {
	var (
		b          strings.Builder
		undeclared []string
		last       int
	)

	seen := make(map[string]struct{})

	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(template[last:loc[0]])
		last = loc[1]

		if loc[2] < 0 {
			// {{ or }}
			b.WriteByte(template[loc[0]])
			continue
		}

		name := template[loc[2]:loc[3]]
		value, ok := values[name]
		if !ok {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				undeclared = append(undeclared, name)
			}
			continue
		}

		b.WriteString(value)
	}

	b.WriteString(template[last:])

	return b.String(), undeclared
}
