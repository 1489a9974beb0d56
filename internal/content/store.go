// Package content holds the active content of the workspace: the latest
// client-supplied text of every open document.
package content

import (
	"iter"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/mgramigna/cql-language-server/internal/cql"
)

// Entry is the current state of one document.
type Entry struct {
	URI     string
	Content string
	// Revision is the client's document version, nil if the client sent none.
	Revision *int32
	// Generation is stamped by the store on every write and never reused.
	Generation uint64
	// Library is what the document header declares, valid when Declared.
	Library  cql.Identifier
	Declared bool
}

// RevisionOr returns the client revision or def when absent.
func (e Entry) RevisionOr(def int64) int64 {
	if e.Revision == nil {
		return def
	}
	return int64(*e.Revision)
}

// Store maps document URIs to entries. It never reads from disk.
type Store struct {
	mu         sync.RWMutex
	docs       map[string]Entry
	generation atomic.Uint64
}

func NewStore() *Store {
	return &Store{
		docs: make(map[string]Entry),
	}
}

// Put replaces or inserts the entry for uri and returns it.
func (s *Store) Put(uri string, content string, revision *int32) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(uri, content, revision)
}

func (s *Store) putLocked(uri string, content string, revision *int32) Entry {
	var rev *int32
	if revision != nil {
		r := *revision
		rev = &r
	}
	e := Entry{
		URI:        uri,
		Content:    content,
		Revision:   rev,
		Generation: s.generation.Add(1),
	}
	e.Library, e.Declared = cql.ParseDeclaration(content)
	s.docs[uri] = e
	return e
}

// Remove deletes the entry for uri. It reports whether an entry existed.
func (s *Store) Remove(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[uri]
	delete(s.docs, uri)
	return ok
}

func (s *Store) Get(uri string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[uri]
	return e, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Entries yields every (uri, entry) pair. The set is snapshotted when
// iteration starts; writes made during the scan are not observed. Each call
// to the returned sequence takes a fresh snapshot. Order is unspecified.
func (s *Store) Entries() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		s.mu.RLock()
		snapshot := maps.Clone(s.docs)
		s.mu.RUnlock()

		for uri, e := range snapshot {
			if !yield(uri, e) {
				return
			}
		}
	}
}
