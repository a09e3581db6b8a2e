// Package store persists the file index and duplicate group cache.
//
// Both are JSON files written whole via a temp file and rename, so a crash
// mid-write can lose only the in-flight update, never corrupt the previous
// snapshot. A missing or corrupt file loads as an empty value with a
// warning - persistence problems rebuild state, they never fail a run.
// Group files are encoded with stable two-space indentation and without
// HTML escaping, so non-ASCII file names stay readable.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dupescout/dupescout/internal/namenorm"
	"github.com/dupescout/dupescout/internal/types"
)

// Store reads and writes the persisted index and group cache.
type Store struct {
	indexPath  string
	groupsPath string
}

// New creates a Store using the given cache file locations.
func New(indexPath, groupsPath string) *Store {
	return &Store{indexPath: indexPath, groupsPath: groupsPath}
}

// diskRecord is the on-disk shape of a FileRecord. SortedSize is a pointer
// so older snapshots written before the field existed can be told apart
// from a stored zero.
type diskRecord struct {
	Size       int64  `json:"size"`
	Name       string `json:"name"`
	Hash       string `json:"hash,omitempty"`
	SortedSize *int64 `json:"sorted_size,omitempty"`
}

// upgradeRecord converts a disk record to its in-memory form, defaulting
// fields missing from older schemas: sorted_size falls back to size, an
// absent hash stays absent, and an absent name is rederived from the path.
func upgradeRecord(path string, dr diskRecord) *types.FileRecord {
	rec := &types.FileRecord{
		Path: path,
		Size: dr.Size,
		Name: dr.Name,
		Hash: dr.Hash,
	}
	if dr.SortedSize != nil {
		rec.SortedSize = *dr.SortedSize
	} else {
		rec.SortedSize = dr.Size
	}
	if rec.Name == "" {
		rec.Name = namenorm.Name(pathBase(path))
	}
	return rec
}

func pathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if os.IsPathSeparator(path[i]) {
			return path[i+1:]
		}
	}
	return path
}

// LoadIndex reads the persisted index. A missing or unreadable file yields
// an empty index and a non-nil warning; the warning is informational, the
// index is always usable.
func (s *Store) LoadIndex() (types.Index, error) {
	index := make(types.Index)

	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return index, fmt.Errorf("load index cache: %w", err)
	}

	var raw map[string]diskRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return index, fmt.Errorf("load index cache: %w", err)
	}

	for path, dr := range raw {
		path = namenorm.NFCString(path)
		index[path] = upgradeRecord(path, dr)
	}
	return index, nil
}

// SaveIndex persists the index. Unlike loads, a save failure is a hard
// failure of the calling operation.
func (s *Store) SaveIndex(index types.Index) error {
	if err := writeJSON(s.indexPath, index); err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	return nil
}

// LoadGroups reads the persisted duplicate group cache, with the same
// missing/corrupt handling as LoadIndex.
func (s *Store) LoadGroups() (types.Groups, error) {
	groups := make(types.Groups)

	data, err := os.ReadFile(s.groupsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return groups, nil
		}
		return groups, fmt.Errorf("load group cache: %w", err)
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return make(types.Groups), fmt.Errorf("load group cache: %w", err)
	}
	return groups, nil
}

// SaveGroups persists the duplicate group cache.
func (s *Store) SaveGroups(groups types.Groups) error {
	if err := writeJSON(s.groupsPath, groups); err != nil {
		return fmt.Errorf("save group cache: %w", err)
	}
	return nil
}

// Export writes groups to a caller-chosen destination, in the same textual
// format as the group cache.
func Export(path string, groups types.Groups) error {
	if err := writeJSON(path, groups); err != nil {
		return fmt.Errorf("export groups: %w", err)
	}
	return nil
}

// writeJSON encodes v with stable indentation and no HTML escaping, then
// writes it atomically: temp file in the same directory, fsync-free rename.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
