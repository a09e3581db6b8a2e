package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupescout/dupescout/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "file_cache.json"), filepath.Join(dir, "duplicate_cache.json"))
}

func TestIndexRoundTrip(t *testing.T) {
	s := newStore(t)

	index := types.Index{
		"/d/a.txt": {Path: "/d/a.txt", Size: 100, SortedSize: 100, Name: "a", Hash: "cafecafecafecafe"},
		"/d/b.txt": {Path: "/d/b.txt", Size: 50, SortedSize: 50, Name: "b"},
	}
	require.NoError(t, s.SaveIndex(index))

	loaded, warn := s.LoadIndex()
	require.NoError(t, warn)
	require.Len(t, loaded, 2)
	assert.Equal(t, index["/d/a.txt"], loaded["/d/a.txt"])
	assert.Equal(t, index["/d/b.txt"], loaded["/d/b.txt"])
}

func TestLoadIndexMissingFile(t *testing.T) {
	s := newStore(t)
	index, warn := s.LoadIndex()
	assert.NoError(t, warn)
	assert.Empty(t, index)
}

func TestLoadIndexCorrupt(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.indexPath, []byte("{not json"), 0o644))

	index, warn := s.LoadIndex()
	assert.Error(t, warn, "corrupt cache should warn")
	assert.Empty(t, index, "corrupt cache loads as empty")
}

func TestLoadIndexUpgradesOldSchema(t *testing.T) {
	s := newStore(t)

	// Older snapshots have no sorted_size and no hash.
	old := map[string]map[string]any{
		"/d/a.txt": {"size": 123, "name": "a"},
	}
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.indexPath, data, 0o644))

	index, warn := s.LoadIndex()
	require.NoError(t, warn)
	rec := index["/d/a.txt"]
	require.NotNil(t, rec)
	assert.Equal(t, int64(123), rec.SortedSize, "sorted_size defaults from size")
	assert.Empty(t, rec.Hash)
	assert.Equal(t, "/d/a.txt", rec.Path)
}

func TestLoadIndexDerivesMissingName(t *testing.T) {
	s := newStore(t)
	data := []byte(`{"/d/Old Report.TXT": {"size": 5}}`)
	require.NoError(t, os.WriteFile(s.indexPath, data, 0o644))

	index, warn := s.LoadIndex()
	require.NoError(t, warn)
	assert.Equal(t, "old report", index["/d/Old Report.TXT"].Name)
}

func TestLoadIndexNormalizesKeys(t *testing.T) {
	s := newStore(t)
	// NFD key on disk must load under its NFC form.
	data := []byte(`{"/d/cafe` + "́" + `.txt": {"size": 5, "name": "café"}}`)
	require.NoError(t, os.WriteFile(s.indexPath, data, 0o644))

	index, warn := s.LoadIndex()
	require.NoError(t, warn)
	assert.Contains(t, index, "/d/café.txt")
}

func TestGroupsRoundTrip(t *testing.T) {
	s := newStore(t)
	groups := types.Groups{
		"group_1": {"/d/a.txt", "/d/b.txt"},
		"group_2": {"/d/c.txt", "/d/d.txt", "/d/e.txt"},
	}
	require.NoError(t, s.SaveGroups(groups))

	loaded, warn := s.LoadGroups()
	require.NoError(t, warn)
	assert.Equal(t, groups, loaded)
}

func TestExportTextual(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "dupes.json")
	groups := types.Groups{"group_1": {"/d/café & más.txt", "/d/läge <kopia>.txt"}}

	require.NoError(t, Export(out, groups))
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "café & más.txt", "non-ASCII names must not be escaped")
	assert.Contains(t, text, "<kopia>", "HTML escaping must be off")
	assert.Contains(t, text, "\n  \"group_1\"", "stable two-space indentation")
}

func TestWriteIsAtomic(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveIndex(types.Index{}))

	// No temp file left behind after a successful write.
	_, err := os.Stat(s.indexPath + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// Overwrite keeps the file readable at every point.
	require.NoError(t, s.SaveIndex(types.Index{"/d/a": {Path: "/d/a", Size: 1, SortedSize: 1, Name: "a"}}))
	loaded, warn := s.LoadIndex()
	require.NoError(t, warn)
	assert.Len(t, loaded, 1)
}
