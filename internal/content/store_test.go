package content_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func rev(v int32) *int32 { return &v }

func TestStorePutGetRemove(t *testing.T) {
	s := content.NewStore()

	first := s.Put("file:///ws/A.cql", "library A", rev(1))
	got, ok := s.Get("file:///ws/A.cql")
	require.True(t, ok)
	assert.Equal(t, first, got)
	assert.Equal(t, int64(1), got.RevisionOr(-1))

	second := s.Put("file:///ws/A.cql", "library A version '2'", nil)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, int64(-1), second.RevisionOr(-1))

	assert.True(t, s.Remove("file:///ws/A.cql"))
	assert.False(t, s.Remove("file:///ws/A.cql"))
	_, ok = s.Get("file:///ws/A.cql")
	assert.False(t, ok)
}

func TestStorePutCopiesRevision(t *testing.T) {
	s := content.NewStore()
	r := int32(3)
	s.Put("file:///ws/A.cql", "", &r)
	r = 4

	got, _ := s.Get("file:///ws/A.cql")
	assert.Equal(t, int64(3), got.RevisionOr(0))
}

func TestEntriesIsRestartableSnapshot(t *testing.T) {
	s := content.NewStore()
	s.Put("file:///ws/A.cql", "a", nil)
	s.Put("file:///ws/B.cql", "b", nil)

	seen := map[string]string{}
	for uri, e := range s.Entries() {
		// Writes during a scan are not observed by it.
		s.Put("file:///ws/C.cql", "c", nil)
		seen[uri] = e.Content
	}
	assert.Equal(t, map[string]string{"file:///ws/A.cql": "a", "file:///ws/B.cql": "b"}, seen)

	count := 0
	for range s.Entries() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestPutRecordsDeclaredLibrary(t *testing.T) {
	s := content.NewStore()
	e := s.Put("file:///ws/A.cql", "// header\nlibrary A version '1.0.0'\ndefine X: 1", nil)
	assert.True(t, e.Declared)
	assert.Equal(t, cql.Identifier{Name: "A", Version: "1.0.0"}, e.Library)

	e = s.Put("file:///ws/A.cql", "define X: 1", nil)
	assert.False(t, e.Declared)
	assert.Equal(t, cql.Identifier{}, e.Library)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := content.NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Put(fmt.Sprintf("file:///ws/%d.cql", i), "x", nil)
		}(i)
		go func() {
			defer wg.Done()
			for range s.Entries() {
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestApply(t *testing.T) {
	s := content.NewStore()
	s.Put("file:///ws/A.cql", "library A version '1'\ndefine X: 1\n", rev(1))

	e, err := s.Apply("file:///ws/A.cql", []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 1, Character: 10},
				End:   protocol.Position{Line: 1, Character: 11},
			},
			Text: "2",
		},
	}, rev(2))
	require.NoError(t, err)
	assert.Equal(t, "library A version '1'\ndefine X: 2\n", e.Content)
	assert.Equal(t, int64(2), e.RevisionOr(0))

	e, err = s.Apply("file:///ws/A.cql", []any{
		protocol.TextDocumentContentChangeEventWhole{Text: "library A"},
	}, rev(3))
	require.NoError(t, err)
	assert.Equal(t, "library A", e.Content)
	assert.True(t, e.Declared)
	assert.Equal(t, cql.Identifier{Name: "A"}, e.Library)

	_, err = s.Apply("file:///ws/missing.cql", nil, nil)
	assert.ErrorIs(t, err, content.ErrNotOpen)
}

func TestApplyRangeUTF16(t *testing.T) {
	// "😀" is two UTF-16 code units and four bytes.
	doc := "x = '😀b'"
	got := content.ApplyRange(doc, protocol.Range{
		Start: protocol.Position{Line: 0, Character: 7},
		End:   protocol.Position{Line: 0, Character: 8},
	}, "c")
	assert.Equal(t, "x = '😀c'", got)
}
