package catalog

import "errors"

// Catalog-specific errors
var (
	ErrInvalidCatalog       = errors.New("invalid catalog")
	ErrEmptyQuery           = errors.New("source query is required")
	ErrInvalidParameterType = errors.New("invalid parameter type")
	ErrSourceNotFound       = errors.New("source not found")
)
