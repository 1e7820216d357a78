package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File represents a discovered catalog file
type File struct {
	FilePath string
	Content  []byte
}

// DiscoverPaths walks each path and collects every .yaml/.yml file beneath it.
// Paths that don't exist are skipped. A path may also name a single file.
func DiscoverPaths(paths []string) ([]File, error) {
	var files []File

	for _, basePath := range paths {
		found, err := discoverInPath(basePath)
		if err != nil {
			return nil, fmt.Errorf("failed to discover catalogs in %s: %w", basePath, err)
		}
		files = append(files, found...)
	}

	return files, nil
}

func discoverInPath(basePath string) ([]File, error) {
	var files []File

	err := filepath.Walk(basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // Skip if directory doesn't exist
			}
			return err
		}

		if info.IsDir() || !isCatalogFile(path) {
			return nil
		}

		content, readErr := os.ReadFile(path) //nolint:gosec // User-configured catalog path
		if readErr != nil {
			return readErr
		}

		files = append(files, File{
			FilePath: path,
			Content:  content,
		})

		return nil
	})

	// Walk order is lexical within a directory, keep it stable across paths too
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].FilePath < files[j].FilePath
	})

	return files, err
}

func isCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFile reads and parses a single catalog file
func LoadFile(path string) (*QueryCatalog, error) {
	content, err := os.ReadFile(path) //nolint:gosec // User-provided catalog path
	if err != nil {
		return nil, err
	}

	return Parse(content, path)
}
