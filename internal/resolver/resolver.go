// Package resolver finds the source of a library reference in the active
// content of the workspace.
package resolver

import (
	"context"
	"slices"

	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/workspace"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cqlls.resolver")

// Source is library text together with where it came from. Generation is
// the store generation it was read at, zero for fetched sources.
type Source struct {
	URI        string
	Content    string
	Generation uint64
}

// Locator finds the documents that declare a library.
type Locator interface {
	Locate(ctx context.Context, id cql.Identifier) ([]string, error)
}

// URIReader reads one document. Absent documents report false.
type URIReader interface {
	ReadURI(ctx context.Context, uri string) (Source, bool)
}

// ContentService is the capability handed to translators and plugins.
type ContentService interface {
	Locator
	URIReader
	ReadLibrary(ctx context.Context, id cql.Identifier) (Source, bool, error)
}

// Unsupported is the locator used when no implementation was supplied.
type Unsupported struct{}

func (Unsupported) Locate(context.Context, cql.Identifier) ([]string, error) {
	return nil, ErrUnsupported
}

// ReadLibrary resolves id through l and reads the single match through r.
// No match is absent, more than one is an *AmbiguousLibraryError.
func ReadLibrary(ctx context.Context, l Locator, r URIReader, id cql.Identifier) (Source, bool, error) {
	uris, err := l.Locate(ctx, id)
	if err != nil {
		return Source{}, false, err
	}

	switch len(uris) {
	case 0:
		return Source{}, false, nil
	case 1:
		src, ok := r.ReadURI(ctx, uris[0])
		return src, ok, nil
	default:
		return Source{}, false, &AmbiguousLibraryError{Library: id, URIs: uris}
	}
}

// Locate scans the store for documents under root that declare id. A
// versioned id matches only that version, an unversioned id only a bare
// declaration. The result is sorted.
func Locate(store *content.Store, folders *workspace.Folders, id cql.Identifier, root string) []string {
	var matches []string
	for uri, entry := range store.Entries() {
		if folders.Root(uri) != root {
			continue
		}
		if entry.Declared && entry.Library == id {
			matches = append(matches, uri)
		}
	}
	slices.Sort(matches)
	return matches
}

// ActiveContent is the workspace-backed content service scoped to one
// workspace root.
type ActiveContent struct {
	store   *content.Store
	folders *workspace.Folders
	root    string
	reader  URIReader
}

func NewActiveContent(store *content.Store, folders *workspace.Folders, root string, reader URIReader) *ActiveContent {
	return &ActiveContent{
		store:   store,
		folders: folders,
		root:    root,
		reader:  reader,
	}
}

func (a *ActiveContent) Root() string {
	return a.root
}

func (a *ActiveContent) Locate(ctx context.Context, id cql.Identifier) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Locate(a.store, a.folders, id, a.root), nil
}

func (a *ActiveContent) ReadURI(ctx context.Context, uri string) (Source, bool) {
	return a.reader.ReadURI(ctx, uri)
}

func (a *ActiveContent) ReadLibrary(ctx context.Context, id cql.Identifier) (Source, bool, error) {
	return ReadLibrary(ctx, a, a.reader, id)
}
