package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Entry pairs a source with the catalog that owns it
type Entry struct {
	Catalog *QueryCatalog
	Source  *SourceTemplate
}

// Store indexes sources across every loaded catalog
type Store struct {
	log logrus.FieldLogger

	mutex    sync.RWMutex
	catalogs []*QueryCatalog
	owners   map[string]*QueryCatalog
}

// NewStore creates an empty store
func NewStore(log logrus.FieldLogger) *Store {
	return &Store{
		log:    log.WithField("component", "catalog"),
		owners: make(map[string]*QueryCatalog),
	}
}

// Load adds the built-in catalogs followed by every catalog discovered under paths
func (s *Store) Load(paths []string) error {
	builtin, err := Builtin()
	if err != nil {
		return err
	}
	for _, cat := range builtin {
		s.Add(cat)
	}

	files, err := DiscoverPaths(paths)
	if err != nil {
		return err
	}

	for _, file := range files {
		cat, parseErr := Parse(file.Content, file.FilePath)
		if parseErr != nil {
			return parseErr
		}
		s.Add(cat)
	}

	s.log.WithFields(logrus.Fields{
		"catalogs": len(s.catalogs),
		"sources":  len(s.owners),
	}).Debug("Loaded query catalogs")

	return nil
}

// Add registers a catalog. Sources it defines replace same-named sources
// from catalogs added earlier.
func (s *Store) Add(cat *QueryCatalog) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.catalogs = append(s.catalogs, cat)

	for name := range cat.Sources {
		if prev, exists := s.owners[name]; exists {
			s.log.WithFields(logrus.Fields{
				"source":   name,
				"previous": prev.Name,
				"catalog":  cat.Name,
			}).Warn("Source redefined by later catalog")
		}
		s.owners[name] = cat
	}
}

// Catalog returns the catalog that owns the named source
func (s *Store) Catalog(source string) (*QueryCatalog, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cat, ok := s.owners[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}

	return cat, nil
}

// Lookup returns the named source together with its owning catalog
func (s *Store) Lookup(source string) (Entry, error) {
	cat, err := s.Catalog(source)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Catalog: cat, Source: cat.Sources[source]}, nil
}

// Sources returns every reachable source sorted by name
func (s *Store) Sources() []Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := make([]Entry, 0, len(s.owners))
	for name, cat := range s.owners {
		entries = append(entries, Entry{Catalog: cat, Source: cat.Sources[name]})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Source.Name < entries[j].Source.Name
	})

	return entries
}

// Catalogs returns the loaded catalogs in load order
func (s *Store) Catalogs() []*QueryCatalog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*QueryCatalog, len(s.catalogs))
	copy(out, s.catalogs)

	return out
}
