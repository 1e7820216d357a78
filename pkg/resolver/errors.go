package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution errors. *Error values match these with errors.Is.
var (
	ErrUnknownSource            = errors.New("unknown source")
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	ErrMalformedTemplate        = errors.New("malformed template")
	ErrInvalidParameterValue    = errors.New("invalid parameter value")
	ErrUnknownDialect           = errors.New("unknown dialect")
)

// Kind classifies a resolution failure
type Kind string

// Resolution failure kinds
const (
	KindUnknownSource    Kind = "unknown_source"
	KindMissingParameter Kind = "missing_parameter"
	KindMalformed        Kind = "malformed_template"
	KindInvalidValue     Kind = "invalid_value"
)

//nolint:gochecknoglobals // Static lookup table
var kindSentinels = map[Kind]error{
	KindUnknownSource:    ErrUnknownSource,
	KindMissingParameter: ErrMissingRequiredParameter,
	KindMalformed:        ErrMalformedTemplate,
	KindInvalidValue:     ErrInvalidParameterValue,
}

// Error reports why a source could not be resolved
type Error struct {
	Kind       Kind
	Source     string
	Parameters []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(kindSentinels[e.Kind].Error())
	fmt.Fprintf(&b, ": source %q", e.Source)

	if len(e.Parameters) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Parameters, ", "))
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Status is a short label for the failure kind, used in metrics
func Status(err error) string {
	if err == nil {
		return "success"
	}

	var rErr *Error
	if errors.As(err, &rErr) {
		return string(rErr.Kind)
	}

	return "error"
}
