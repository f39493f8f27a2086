// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const collectionFile = "collection.json"

// Target selects which output root a store writes to. Trial output is
// fully disposable; the durable root is never touched during a trial
// run.
type Target int

const (
	TargetDurable Target = iota
	TargetTrial
)

func (t Target) String() string {
	if t == TargetTrial {
		return "trial"
	}
	return "durable"
}

// Roots holds the two logically distinct output roots.
type Roots struct {
	Durable string
	Trial   string
}

// For returns the directory for the given target.
func (r Roots) For(t Target) string {
	if t == TargetTrial {
		return r.Trial
	}
	return r.Durable
}

// Store reads and writes one catalog output root: collection.json plus
// one <item-id>.json per merged item. remoteBase is the public base URL
// the catalog will be served from; item link hrefs are built against it.
type Store struct {
	dir        string
	remoteBase string
}

// NewStore returns a store rooted at dir.
func NewStore(dir, remoteBase string) *Store {
	return &Store{dir: dir, remoteBase: strings.TrimSuffix(remoteBase, "/")}
}

// Dir returns the store's output root.
func (s *Store) Dir() string { return s.dir }

// CollectionHref returns the remote self href of the collection.
func (s *Store) CollectionHref() string {
	return s.remoteBase + "/" + collectionFile
}

// ItemHref returns the remote href an item link points at.
func (s *Store) ItemHref(id string) string {
	return s.remoteBase + "/" + id + ".json"
}

// LoadCollection reads collection.json from the output root. A missing
// or unparseable collection is fatal to the run.
func (s *Store) LoadCollection() (*Collection, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, collectionFile))
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	var col Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("parse collection: %w", err)
	}
	return &col, nil
}

// SaveCollection writes collection.json atomically.
func (s *Store) SaveCollection(col *Collection) error {
	return s.writeJSON(collectionFile, col)
}

// WriteItem materializes one item as <item-id>.json, overwriting any
// previous version.
func (s *Store) WriteItem(item *Item) error {
	return s.writeJSON(item.ID+".json", item)
}

// ReadItem loads a previously materialized item.
func (s *Store) ReadItem(id string) (*Item, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("read item %s: %w", id, err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("parse item %s: %w", id, err)
	}
	return &item, nil
}

// ItemIDsOnDisk lists the IDs of all materialized items in the root.
func (s *Store) ItemIDsOnDisk() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == collectionFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// RemoveItemFiles deletes every materialized item JSON in the root,
// leaving collection.json in place. Used by rebuild merges.
func (s *Store) RemoveItemFiles() (int, error) {
	ids, err := s.ItemIDsOnDisk()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil {
			return i, fmt.Errorf("remove item %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// writeJSON writes v to name under the root via temp file + rename so a
// cancelled run never leaves a half-written document behind.
func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
