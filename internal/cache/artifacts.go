// Package cache holds translation artifacts in memory, keyed by the library
// identity and the exact document state they were produced from.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/translator"
)

// Key identifies one artifact. Revision is the client version (-1 when the
// client sent none) and Generation the store stamp of the document text.
type Key struct {
	Library    cql.Identifier
	URI        string
	Revision   int64
	Generation uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", k.URI, k.Library, k.Revision, k.Generation)
}

// Artifacts is a bounded LRU of translation artifacts. At most one key per
// document URI is retained, the one with the highest generation.
type Artifacts struct {
	// mu orders Add against itself; the LRU is safe for everything else.
	mu  sync.Mutex
	lru *lru.Cache[Key, *translator.Artifact]
}

func NewArtifacts(size int) (*Artifacts, error) {
	c, err := lru.New[Key, *translator.Artifact](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Artifacts{lru: c}, nil
}

func (a *Artifacts) Get(key Key) (*translator.Artifact, bool) {
	return a.lru.Get(key)
}

// Add stores artifact under key and drops older generations of the same
// URI. It reports false, storing nothing, when a newer generation of the URI
// is already cached.
func (a *Artifacts) Add(key Key, artifact *translator.Artifact) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	var older []Key
	for _, k := range a.lru.Keys() {
		if k.URI != key.URI || k == key {
			continue
		}
		if k.Generation > key.Generation {
			return false
		}
		older = append(older, k)
	}
	for _, k := range older {
		a.lru.Remove(k)
	}
	a.lru.Add(key, artifact)
	return true
}

func (a *Artifacts) Remove(key Key) {
	a.lru.Remove(key)
}

// Invalidate drops every artifact of uri and returns how many were dropped.
func (a *Artifacts) Invalidate(uri string) int {
	n := 0
	for _, k := range a.lru.Keys() {
		if k.URI == uri {
			a.lru.Remove(k)
			n++
		}
	}
	return n
}

// Keys returns the cached keys from oldest to newest.
func (a *Artifacts) Keys() []Key {
	return a.lru.Keys()
}

func (a *Artifacts) Len() int {
	return a.lru.Len()
}
