package cache_test

import (
	"testing"

	"github.com/mgramigna/cql-language-server/internal/cache"
	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(uri string, revision int64, generation uint64) cache.Key {
	return cache.Key{
		Library:    cql.Identifier{Name: "A", Version: "1.0.0"},
		URI:        uri,
		Revision:   revision,
		Generation: generation,
	}
}

func TestArtifactsNewerKeyReplacesOlder(t *testing.T) {
	c, err := cache.NewArtifacts(8)
	require.NoError(t, err)

	old := &translator.Artifact{URI: "file:///ws/A.cql", Revision: 1}
	c.Add(key("file:///ws/A.cql", 1, 1), old)
	other := &translator.Artifact{URI: "file:///ws/B.cql", Revision: 1}
	c.Add(key("file:///ws/B.cql", 1, 2), other)

	got, ok := c.Get(key("file:///ws/A.cql", 1, 1))
	require.True(t, ok)
	assert.Same(t, old, got)

	assert.True(t, c.Add(key("file:///ws/A.cql", 2, 3), &translator.Artifact{URI: "file:///ws/A.cql", Revision: 2}))
	_, ok = c.Get(key("file:///ws/A.cql", 1, 1))
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	got, ok = c.Get(key("file:///ws/B.cql", 1, 2))
	require.True(t, ok)
	assert.Same(t, other, got)
}

func TestArtifactsOlderGenerationDoesNotReplaceNewer(t *testing.T) {
	c, err := cache.NewArtifacts(8)
	require.NoError(t, err)

	current := &translator.Artifact{URI: "file:///ws/A.cql", Revision: 2}
	assert.True(t, c.Add(key("file:///ws/A.cql", 2, 5), current))
	assert.False(t, c.Add(key("file:///ws/A.cql", 1, 4), &translator.Artifact{URI: "file:///ws/A.cql", Revision: 1}))

	_, ok := c.Get(key("file:///ws/A.cql", 1, 4))
	assert.False(t, ok)
	got, ok := c.Get(key("file:///ws/A.cql", 2, 5))
	require.True(t, ok)
	assert.Same(t, current, got)
	assert.Equal(t, 1, c.Len())
}

func TestArtifactsInvalidate(t *testing.T) {
	c, err := cache.NewArtifacts(8)
	require.NoError(t, err)

	c.Add(key("file:///ws/A.cql", 1, 1), &translator.Artifact{})
	c.Add(key("file:///ws/B.cql", 1, 2), &translator.Artifact{})

	assert.Equal(t, 1, c.Invalidate("file:///ws/A.cql"))
	assert.Equal(t, 0, c.Invalidate("file:///ws/A.cql"))
	assert.Len(t, c.Keys(), 1)
}

func TestArtifactsBounded(t *testing.T) {
	c, err := cache.NewArtifacts(2)
	require.NoError(t, err)
	for i, uri := range []string{"file:///a", "file:///b", "file:///c"} {
		c.Add(key(uri, 1, uint64(i)), &translator.Artifact{})
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(key("file:///a", 1, 0))
	assert.False(t, ok)
}

func TestNewArtifactsRejectsInvalidSize(t *testing.T) {
	_, err := cache.NewArtifacts(0)
	assert.Error(t, err)
}
