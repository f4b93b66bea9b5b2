package store

import (
	"sort"
	"sync"
	"time"

	"github.com/delayboard/delayboard/server/internal/report"
)

// Entry is the outcome of the most recent load of one dataset.
// Exactly one of Report and Err is set.
type Entry struct {
	DatasetID string
	Report    *report.Report
	Err       error
	LoadedAt  time.Time
}

// OK reports whether the entry holds a report.
func (e *Entry) OK() bool { return e.Err == nil && e.Report != nil }

// Store is a thread-safe in-memory report store, keyed by dataset id.
// Entries are replaced whole; readers never observe a partially built report.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	now  func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[string]*Entry),
		now:  time.Now,
	}
}

// Put stores or replaces the report for r.DatasetID.
// Callers must not modify r after calling Put.
func (s *Store) Put(r *report.Report) {
	s.set(&Entry{DatasetID: r.DatasetID, Report: r})
}

// PutError records a failed load for datasetID, replacing any previous report.
func (s *Store) PutError(datasetID string, err error) {
	s.set(&Entry{DatasetID: datasetID, Err: err})
}

func (s *Store) set(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.LoadedAt = s.now()
	s.data[e.DatasetID] = e
}

// Get returns the Entry for datasetID and whether one was found.
func (s *Store) Get(datasetID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[datasetID]
	return e, ok
}

// List returns all entries sorted by dataset id.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DatasetID < out[j].DatasetID })
	return out
}

// Count returns the number of entries, failed loads included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Retain removes every entry whose id is not in ids and returns the number
// removed. It is used when datasets are dropped from the configuration.
func (s *Store) Retain(ids []string) int {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.data {
		if _, ok := keep[id]; !ok {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}
