// Package manager produces translation artifacts for open documents and
// caches them per document state.
package manager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mgramigna/cql-language-server/internal/cache"
	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/mgramigna/cql-language-server/internal/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"
)

var log = commonlog.GetLogger("cqlls.manager")

var (
	ErrDocumentNotOpen = errors.New("manager: document not open")
	ErrStopped         = errors.New("manager: translation manager is stopped")
)

// noRevision stands in for an absent client version in cache keys.
const noRevision = -1

type Config struct {
	Store      *content.Store
	Folders    *workspace.Folders
	Reader     resolver.URIReader
	Translator translator.Translator
	CacheSize  int
	// Registerer receives the manager's metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// TranslationManager translates documents from the active content store.
// Concurrent requests for the same document state share one translation.
type TranslationManager struct {
	store      *content.Store
	folders    *workspace.Folders
	reader     resolver.URIReader
	translator translator.Translator
	artifacts  *cache.Artifacts
	flight     singleflight.Group
	stopped    atomic.Bool
	stats      counters
}

func NewTranslationManager(config Config) (*TranslationManager, error) {
	if config.Store == nil || config.Folders == nil || config.Translator == nil {
		return nil, errors.New("manager: store, folders and translator are required")
	}
	artifacts, err := cache.NewArtifacts(config.CacheSize)
	if err != nil {
		return nil, err
	}

	m := &TranslationManager{
		store:      config.Store,
		folders:    config.Folders,
		reader:     config.Reader,
		translator: config.Translator,
		artifacts:  artifacts,
	}
	if m.reader == nil {
		m.reader = resolver.NewReader(config.Store, nil)
	}
	if config.Registerer != nil {
		if err := m.stats.register(config.Registerer, m.artifacts); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ContentService returns the content service scoped to the workspace root
// of uri.
func (m *TranslationManager) ContentService(uri string) resolver.ContentService {
	return resolver.NewActiveContent(m.store, m.folders, m.folders.Root(uri), m.reader)
}

// Translate returns the artifact for the current state of uri. Diagnostics
// from the translator are part of the artifact; only a missing document, an
// ambiguous library reference or an unsupported content service fail the
// call.
func (m *TranslationManager) Translate(ctx context.Context, uri string) (*translator.Artifact, error) {
	if m.stopped.Load() {
		return nil, ErrStopped
	}

	entry, ok := m.store.Get(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
	}

	key := cache.Key{
		Library:    Identify(entry),
		URI:        entry.URI,
		Revision:   entry.RevisionOr(noRevision),
		Generation: entry.Generation,
	}

	if artifact, ok := m.lookup(key); ok {
		m.stats.hits.Add(1)
		return artifact, nil
	}
	m.stats.misses.Add(1)

	// Translations are not cancelled mid-flight; the result is shared.
	detached := context.WithoutCancel(ctx)
	v, err, shared := m.flight.Do(key.String(), func() (any, error) {
		if artifact, ok := m.lookup(key); ok {
			return artifact, nil
		}
		return m.translate(detached, key, entry)
	})
	if shared {
		m.stats.coalesced.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return v.(*translator.Artifact), nil
}

func (m *TranslationManager) translate(ctx context.Context, key cache.Key, entry content.Entry) (*translator.Artifact, error) {
	root := m.folders.Root(entry.URI)
	rec := &recorder{service: resolver.NewActiveContent(m.store, m.folders, root, m.reader)}

	log.Debugf("translating %s (%s, revision %d)", entry.URI, key.Library, key.Revision)
	m.stats.translations.Add(1)

	program, diagnostics, err := m.translator.Translate(ctx, entry.Content, rec)
	if err != nil {
		if errors.Is(err, resolver.ErrAmbiguousLibrary) || errors.Is(err, resolver.ErrUnsupported) {
			return nil, err
		}
		log.Warningf("translator failed for %s: %s", entry.URI, err)
		program = nil
		diagnostics = append(diagnostics, translator.Diagnostic{
			Severity: translator.SeverityError,
			Message:  fmt.Sprintf("translation failed: %s", err),
		})
	}
	if diagnostics == nil {
		diagnostics = []translator.Diagnostic{}
	}

	artifact := &translator.Artifact{
		Library:      key.Library,
		URI:          entry.URI,
		Revision:     key.Revision,
		Generation:   entry.Generation,
		Program:      program,
		Diagnostics:  diagnostics,
		Dependencies: rec.dependencies(),
	}
	// A document edited during translation keeps the newer state cached.
	if current, ok := m.store.Get(entry.URI); ok && current.Generation == entry.Generation {
		m.artifacts.Add(key, artifact)
	}
	return artifact, nil
}

// lookup returns a cached artifact if every source it was built from is
// unchanged.
func (m *TranslationManager) lookup(key cache.Key) (*translator.Artifact, bool) {
	artifact, ok := m.artifacts.Get(key)
	if !ok {
		return nil, false
	}
	if !m.fresh(artifact) {
		m.artifacts.Remove(key)
		m.stats.stale.Add(1)
		log.Debugf("dropping stale artifact for %s", key.URI)
		return nil, false
	}
	return artifact, true
}

// Every dependency must still resolve to the same document, and that
// document must be unchanged.
func (m *TranslationManager) fresh(artifact *translator.Artifact) bool {
	if len(artifact.Dependencies) == 0 {
		return true
	}
	root := m.folders.Root(artifact.URI)
	for _, dep := range artifact.Dependencies {
		located := resolver.Locate(m.store, m.folders, dep.Library, root)
		if dep.URI == "" {
			if len(located) > 0 {
				return false
			}
			continue
		}
		if len(located) != 1 || located[0] != dep.URI {
			return false
		}
		if dep.Generation == 0 {
			// Read outside the active content.
			continue
		}
		e, ok := m.store.Get(dep.URI)
		if !ok || e.Generation != dep.Generation {
			return false
		}
	}
	return true
}

// Invalidate drops every artifact cached for uri.
func (m *TranslationManager) Invalidate(uri string) int {
	return m.artifacts.Invalidate(uri)
}

// Sweep drops artifacts whose document is closed or has moved on.
func (m *TranslationManager) Sweep() int {
	n := 0
	for _, key := range m.artifacts.Keys() {
		e, ok := m.store.Get(key.URI)
		if !ok || e.Generation != key.Generation {
			m.artifacts.Remove(key)
			n++
		}
	}
	if n > 0 {
		log.Debugf("swept %d artifacts", n)
	}
	return n
}

// Stop refuses new translations. Translations already running finish.
func (m *TranslationManager) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		log.Info("translation manager stopped")
	}
}

func (m *TranslationManager) Stats() Stats {
	return m.stats.snapshot(m.artifacts.Len())
}

// Identify returns the library a document declares. Documents without a
// declaration are named after their file.
func Identify(entry content.Entry) cql.Identifier {
	if entry.Declared {
		return entry.Library
	}
	p := entry.URI
	if u, err := url.Parse(entry.URI); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	return cql.Identifier{Name: strings.TrimSuffix(base, path.Ext(base))}
}

// recorder is the source provider handed to the translator. It remembers
// every library it was asked for.
type recorder struct {
	service resolver.ContentService
	mu      sync.Mutex
	deps    []translator.Dependency
}

func (r *recorder) ReadLibrary(ctx context.Context, id cql.Identifier) (resolver.Source, bool, error) {
	src, ok, err := r.service.ReadLibrary(ctx, id)
	if err != nil {
		return src, ok, err
	}

	dep := translator.Dependency{Library: id}
	if ok {
		dep.URI = src.URI
		dep.Generation = src.Generation
	}
	r.mu.Lock()
	r.deps = append(r.deps, dep)
	r.mu.Unlock()
	return src, ok, nil
}

func (r *recorder) dependencies() []translator.Dependency {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deps
}
