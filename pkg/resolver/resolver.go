// Package resolver turns a catalog source and caller overrides into a final
// query string by substituting {name} placeholders.
package resolver

import (
	"sort"
	"time"

	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/ethpandaops/querycat/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Resolver substitutes parameters into source templates. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	formatter Formatter
	now       func() time.Time
	log       logrus.FieldLogger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock sets the time source used for relative datetime parameters
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithFormatter sets the dialect formatter
func WithFormatter(f Formatter) Option {
	return func(r *Resolver) {
		r.formatter = f
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.log = log.WithField("component", "resolver")
	}
}

// New creates a resolver using the kql formatter and the wall clock unless overridden
func New(opts ...Option) *Resolver {
	kql, _ := FormatterFor(DialectKQL)

	r := &Resolver{
		formatter: kql,
		now:       time.Now,
		log:       logrus.StandardLogger().WithField("component", "resolver"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dialect returns the dialect of the configured formatter
func (r *Resolver) Dialect() string {
	return r.formatter.Dialect
}

// Resolve builds the query for the named source. Overrides take precedence
// over declared defaults; every effective parameter must end up with a value.
func (r *Resolver) Resolve(cat *catalog.QueryCatalog, source string, overrides map[string]interface{}) (string, error) {
	query, err := r.resolve(cat, source, overrides)

	label := source
	if _, ok := cat.Source(source); !ok {
		label = "unknown"
	}
	observability.ResolutionsTotal.WithLabelValues(label, Status(err)).Inc()

	return query, err
}

func (r *Resolver) resolve(cat *catalog.QueryCatalog, source string, overrides map[string]interface{}) (string, error) {
	src, ok := cat.Source(source)
	if !ok {
		return "", &Error{Kind: KindUnknownSource, Source: source}
	}

	params := cat.EffectiveParameters(src)

	for name := range overrides {
		if _, declared := params[name]; !declared {
			r.log.WithFields(logrus.Fields{
				"source":    source,
				"parameter": name,
			}).Debug("Ignoring override for undeclared parameter")
		}
	}

	values := make(map[string]interface{}, len(params))
	var missing []string

	for name, spec := range params {
		if v, present := overrides[name]; present {
			values[name] = v
			continue
		}
		if spec.HasDefault {
			values[name] = spec.Default
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &Error{Kind: KindMissingParameter, Source: source, Parameters: missing}
	}

	// One reading of the clock so start/end offsets agree
	now := r.now()

	formatted := make(map[string]string, len(values))
	for _, name := range sortedKeys(values) {
		s, err := r.formatValue(params[name], values[name], now)
		if err != nil {
			return "", &Error{Kind: KindInvalidValue, Source: source, Parameters: []string{name}, Err: err}
		}
		formatted[name] = s
	}

	query, undeclared := substitute(src.Template, formatted)
	if len(undeclared) > 0 {
		return "", &Error{Kind: KindMalformed, Source: source, Parameters: undeclared}
	}

	return query, nil
}

// Parameter describes one effective parameter of a source
type Parameter struct {
	catalog.ParameterSpec
	Required bool   `json:"required"`
	Origin   string `json:"origin"`
}

// Parameter origins
const (
	OriginLocal  = "local"
	OriginGlobal = "global"
)

// Plan lists the effective parameters of a source, sorted by name
func Plan(cat *catalog.QueryCatalog, source string) ([]Parameter, error) {
	src, ok := cat.Source(source)
	if !ok {
		return nil, &Error{Kind: KindUnknownSource, Source: source}
	}

	params := cat.EffectiveParameters(src)
	plan := make([]Parameter, 0, len(params))

	for _, name := range sortedKeys(params) {
		spec := params[name]
		origin := OriginGlobal
		if src.IsLocal(name) {
			origin = OriginLocal
		}
		plan = append(plan, Parameter{
			ParameterSpec: *spec,
			Required:      !spec.HasDefault,
			Origin:        origin,
		})
	}

	return plan, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
