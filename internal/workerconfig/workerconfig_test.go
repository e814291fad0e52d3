package workerconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers:
  - name: reverse
    active: true
  - name: random_fact
    active: false
`), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "reverse", Active: true}, entries[0])
	assert.Equal(t, Entry{Name: "random_fact", Active: false}, entries[1])
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActiveTypesFiltersInactive(t *testing.T) {
	entries := []Entry{
		{Name: "reverse", Active: true},
		{Name: "upper", Active: false},
		{Name: "hash", Active: true},
	}
	assert.Equal(t, []string{"reverse", "hash"}, ActiveTypes(entries))
}
