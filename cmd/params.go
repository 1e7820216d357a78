package cmd

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParam is returned for a -p flag that is not key=value
var ErrInvalidParam = errors.New("invalid parameter, expected key=value")

// parseParams turns repeated key=value flags into resolver overrides. Values
// stay strings; the resolver coerces them to the declared type. A later flag
// for the same key wins.
func parseParams(raw []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(raw))

	for _, item := range raw {
		key, value, found := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParam, item)
		}
		params[key] = value
	}

	return params, nil
}
