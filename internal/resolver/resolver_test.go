package resolver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/scheduler"
	"github.com/mgramigna/cql-language-server/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "file:///ws"

func newService(t *testing.T, docs map[string]string) (*resolver.ActiveContent, *content.Store) {
	t.Helper()
	store := content.NewStore()
	for uri, text := range docs {
		store.Put(uri, text, nil)
	}

	schedule := scheduler.NewScheduler(2, 8)
	schedule.RunScheduler()
	t.Cleanup(schedule.StopScheduler)

	reader := resolver.NewReader(store, resolver.NewFetcher(schedule, time.Second))
	folders := workspace.NewFolders(root)
	return resolver.NewActiveContent(store, folders, root, reader), store
}

func TestReadLibraryCardinality(t *testing.T) {
	ctx := context.Background()
	b := cql.Identifier{Name: "B", Version: "1.0.0"}

	t.Run("zero matches", func(t *testing.T) {
		svc, _ := newService(t, map[string]string{
			root + "/A.cql": "library A version '1.0.0'\ninclude B version '1.0.0'",
		})
		uris, err := svc.Locate(ctx, b)
		require.NoError(t, err)
		assert.Empty(t, uris)

		_, ok, err := svc.ReadLibrary(ctx, b)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("one match", func(t *testing.T) {
		svc, store := newService(t, map[string]string{
			root + "/A.cql": "library A version '1.0.0'\ninclude B version '1.0.0'",
			root + "/B.cql": "library B version '1.0.0'\ndefine X: 1",
		})
		src, ok, err := svc.ReadLibrary(ctx, b)
		require.NoError(t, err)
		require.True(t, ok)
		entry, _ := store.Get(root + "/B.cql")
		assert.Equal(t, root+"/B.cql", src.URI)
		assert.Equal(t, entry.Content, src.Content)
		assert.Equal(t, entry.Generation, src.Generation)
	})

	t.Run("ambiguous", func(t *testing.T) {
		svc, _ := newService(t, map[string]string{
			root + "/A.cql":     "library A version '1.0.0'\ninclude B version '1.0.0'",
			root + "/B.cql":     "library B version '1.0.0'\ndefine X: 1",
			root + "/B_old.cql": "library B version '1.0.0'\ndefine X: 0",
		})
		_, _, err := svc.ReadLibrary(ctx, b)
		require.Error(t, err)
		assert.ErrorIs(t, err, resolver.ErrAmbiguousLibrary)

		var ambiguous *resolver.AmbiguousLibraryError
		require.ErrorAs(t, err, &ambiguous)
		assert.Equal(t, b, ambiguous.Library)
		assert.Equal(t, []string{root + "/B.cql", root + "/B_old.cql"}, ambiguous.URIs)
	})
}

func TestLocateVersionMatching(t *testing.T) {
	svc, _ := newService(t, map[string]string{
		root + "/B1.cql":   "library B version '1.0.0'",
		root + "/B2.cql":   "library B version '2.0.0'",
		root + "/Bare.cql": "library B\n",
		root + "/BB.cql":   "library BB version '2.0.0'",
		root + "/Late.cql": "define X: 1\nlibrary B version '2.0.0'",
	})
	ctx := context.Background()

	uris, _ := svc.Locate(ctx, cql.Identifier{Name: "B", Version: "2.0.0"})
	assert.Equal(t, []string{root + "/B2.cql"}, uris)

	uris, _ = svc.Locate(ctx, cql.Identifier{Name: "B"})
	assert.Equal(t, []string{root + "/Bare.cql"}, uris)
}

func TestLocateNeverCrossesRoots(t *testing.T) {
	store := content.NewStore()
	folders := workspace.NewFolders("file:///one", "file:///two")
	for i, r := range []string{"file:///one", "file:///two", "file:///three"} {
		store.Put(fmt.Sprintf("%s/B%d.cql", r, i), "library B version '1'", nil)
	}

	id := cql.Identifier{Name: "B", Version: "1"}
	for _, scope := range []string{"file:///one", "file:///two", "file:///three", "file:///four"} {
		for _, uri := range resolver.Locate(store, folders, id, scope) {
			assert.Equal(t, scope, folders.Root(uri))
		}
	}
	assert.Len(t, resolver.Locate(store, folders, id, "file:///one"), 1)
	assert.Empty(t, resolver.Locate(store, folders, id, "file:///four"))
}

func TestUnsupportedLocator(t *testing.T) {
	_, _, err := resolver.ReadLibrary(context.Background(), resolver.Unsupported{}, nil, cql.Identifier{Name: "A"})
	assert.ErrorIs(t, err, resolver.ErrUnsupported)
}

func TestReadURIFallback(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "Disk.cql")
	require.NoError(t, os.WriteFile(path, []byte("library Disk"), 0o644))

	src, ok := svc.ReadURI(ctx, "file://"+filepath.ToSlash(path))
	require.True(t, ok)
	assert.Equal(t, "library Disk", src.Content)
	assert.Zero(t, src.Generation)

	_, ok = svc.ReadURI(ctx, "file://"+filepath.ToSlash(filepath.Join(dir, "missing.cql")))
	assert.False(t, ok)

	_, ok = svc.ReadURI(ctx, "ftp://example.com/A.cql")
	assert.False(t, ok)
}

func TestReadURIHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Remote.cql" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "library Remote version '1'")
	}))
	defer srv.Close()

	svc, _ := newService(t, nil)
	ctx := context.Background()

	src, ok := svc.ReadURI(ctx, srv.URL+"/Remote.cql")
	require.True(t, ok)
	assert.Equal(t, "library Remote version '1'", src.Content)

	_, ok = svc.ReadURI(ctx, srv.URL+"/missing.cql")
	assert.False(t, ok)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	schedule := scheduler.NewScheduler(1, 1)
	schedule.RunScheduler()
	defer schedule.StopScheduler()

	fetcher := resolver.NewFetcher(schedule, 20*time.Millisecond)
	start := time.Now()
	_, err := fetcher.Fetch(context.Background(), srv.URL+"/Slow.cql")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
