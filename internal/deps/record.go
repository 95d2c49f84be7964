// Package deps gathers the files a client bundle needs. Hooks report the
// client-only and universal modules they see; the Collector drains those
// reports into a per-build DependencySet and asks an analysis worker for the
// transitive static-import closure of the set.
package deps

import (
	"slices"
	"strings"
	"sync"
)

// DependencyRecord identifies one file that must be visible to the browser.
type DependencyRecord struct {
	URL          string `json:"url" yaml:"url"`
	Specifier    string `json:"specifier" yaml:"specifier"`
	RelativePath string `json:"relativePath" yaml:"relativePath"`
}

// DependencySet is an append-only set of records keyed by URL. It is safe
// for concurrent use.
type DependencySet struct {
	mu    sync.Mutex
	byURL map[string]DependencyRecord
}

// NewDependencySet returns an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{byURL: make(map[string]DependencyRecord)}
}

// Add inserts r and reports whether its URL was new. The first record for a
// URL wins.
func (s *DependencySet) Add(r DependencyRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byURL[r.URL]; ok {
		return false
	}
	s.byURL[r.URL] = r
	return true
}

// AddAll inserts every record and returns how many were new.
func (s *DependencySet) AddAll(records []DependencyRecord) int {
	added := 0
	for _, r := range records {
		if s.Add(r) {
			added++
		}
	}
	return added
}

// Len returns the number of records.
func (s *DependencySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byURL)
}

// Records returns the records sorted by URL, so the same inputs always give
// the same sequence no matter the order modules were loaded in.
func (s *DependencySet) Records() []DependencyRecord {
	s.mu.Lock()
	out := make([]DependencyRecord, 0, len(s.byURL))
	for _, r := range s.byURL {
		out = append(out, r)
	}
	s.mu.Unlock()

	sortRecords(out)
	return out
}

// URLs returns the sorted record URLs.
func (s *DependencySet) URLs() []string {
	records := s.Records()
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	return urls
}

func sortRecords(records []DependencyRecord) {
	slices.SortFunc(records, func(a, b DependencyRecord) int {
		return strings.Compare(a.URL, b.URL)
	})
}
