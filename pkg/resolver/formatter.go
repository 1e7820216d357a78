package resolver

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Dialect names
const (
	DialectKQL    = "kql"
	DialectSplunk = "splunk"
)

// Formatter renders typed values the way a backend query language expects them
type Formatter struct {
	Dialect  string
	Datetime func(time.Time) string
	List     func([]string) string
}

func quoteList(quote string) func([]string) string {
	return func(items []string) string {
		quoted := make([]string, len(items))
		for i, item := range items {
			quoted[i] = quote + item + quote
		}
		return strings.Join(quoted, ",")
	}
}

//nolint:gochecknoglobals // Static formatter registry
var formatters = map[string]Formatter{
	DialectKQL: {
		Dialect: DialectKQL,
		// Rendered bare, templates wrap it in datetime(...)
		Datetime: func(t time.Time) string {
			return t.UTC().Format("2006-01-02T15:04:05.000000Z")
		},
		List: quoteList("'"),
	},
	DialectSplunk: {
		Dialect: DialectSplunk,
		Datetime: func(t time.Time) string {
			return t.UTC().Format("2006-01-02T15:04:05.000000")
		},
		List: quoteList(`"`),
	},
}

// FormatterFor returns the formatter for the named dialect. An empty name selects kql.
func FormatterFor(dialect string) (Formatter, error) {
	if dialect == "" {
		dialect = DialectKQL
	}

	f, ok := formatters[strings.ToLower(dialect)]
	if !ok {
		return Formatter{}, fmt.Errorf("%w: %s", ErrUnknownDialect, dialect)
	}

	return f, nil
}

// Dialects lists the supported dialect names
func Dialects() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
