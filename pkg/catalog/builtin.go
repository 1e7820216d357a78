package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed builtin/*.yaml
var builtinCatalogs embed.FS

// Builtin parses the catalogs shipped with the binary
func Builtin() ([]*QueryCatalog, error) {
	entries, err := fs.ReadDir(builtinCatalogs, "builtin")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalogs: %w", err)
	}

	catalogs := make([]*QueryCatalog, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}

		name := path.Join("builtin", entry.Name())
		data, readErr := builtinCatalogs.ReadFile(name)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read embedded catalog %s: %w", name, readErr)
		}

		cat, parseErr := Parse(data, name)
		if parseErr != nil {
			return nil, parseErr
		}
		catalogs = append(catalogs, cat)
	}

	return catalogs, nil
}
