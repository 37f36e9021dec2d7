// Package docstore keeps an in-memory snapshot of knowledge document
// metadata per owner. The entity dictionary compiles from this snapshot
// instead of hitting SQLite on every scan; a monotonic version number lets
// consumers detect staleness cheaply.
package docstore

import (
	"fmt"
	"sync"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

// Entry is the slice of a knowledge document the dictionary needs.
type Entry struct {
	ID     string
	UserID string
	Path   string
	Name   string
}

// Lister hydrates the snapshot from durable storage.
type Lister interface {
	ListDocumentsByPrefix(userID, pathPrefix string) ([]*store.KnowledgeDocument, error)
}

// Store holds per-owner document entries. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]Entry // owner -> doc id -> entry
	version int64
}

// New creates an empty snapshot store.
func New() *Store {
	return &Store{byOwner: make(map[string]map[string]Entry)}
}

// Hydrate replaces one owner's snapshot from durable storage. Returns the
// number of entries loaded.
func (s *Store) Hydrate(userID string, src Lister) (int, error) {
	docs, err := src.ListDocumentsByPrefix(userID, "")
	if err != nil {
		return 0, fmt.Errorf("docstore: hydrate %s: %w", userID, err)
	}

	entries := make(map[string]Entry, len(docs))
	for _, d := range docs {
		entries[d.ID] = Entry{ID: d.ID, UserID: d.UserID, Path: d.Path, Name: d.Name}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[userID] = entries
	s.version++
	return len(entries), nil
}

// Upsert adds or updates a single entry, e.g. after a document write.
func (s *Store) Upsert(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := s.byOwner[e.UserID]
	if owner == nil {
		owner = make(map[string]Entry)
		s.byOwner[e.UserID] = owner
	}
	owner[e.ID] = e
	s.version++
}

// Remove drops an entry after a document delete.
func (s *Store) Remove(userID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner := s.byOwner[userID]; owner != nil {
		if _, ok := owner[id]; ok {
			delete(owner, id)
			s.version++
		}
	}
}

// Entries returns a copy of one owner's snapshot.
func (s *Store) Entries(userID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner := s.byOwner[userID]
	out := make([]Entry, 0, len(owner))
	for _, e := range owner {
		out = append(out, e)
	}
	return out
}

// Count returns the number of entries held for one owner.
func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byOwner[userID])
}

// Version increments on every mutation. Consumers cache derived structures
// (the compiled dictionary) keyed by this value.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
