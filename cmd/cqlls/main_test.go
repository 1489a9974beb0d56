package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.cql"),
		[]byte("library Main version '1'\ninclude Helpers version '2' called H\ndefine X: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "Helpers.cql"),
		[]byte("library Helpers version '2'\ndefine Y: 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"translate", dir})
	require.NoError(t, cmd.Execute())

	var artifacts []struct {
		URI     string `json:"uri"`
		Library struct {
			Name string `json:"name"`
		} `json:"library"`
		Diagnostics []any `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &artifacts))
	require.Len(t, artifacts, 2)
	assert.Equal(t, "Main", artifacts[0].Library.Name)
	assert.Empty(t, artifacts[0].Diagnostics)
	assert.Equal(t, "Helpers", artifacts[1].Library.Name)
}

func TestTranslateCommandReportsErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Broken.cql")
	require.NoError(t, os.WriteFile(file, []byte("library Broken\ninclude Missing\n"), 0o644))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"translate", file})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 libraries have errors")
	assert.Contains(t, out.String(), "could not load source for library Missing")
}

func TestFileURI(t *testing.T) {
	assert.Equal(t, "file:///tmp/a%20b/A.cql", fileURI("/tmp/a b/A.cql"))
}
