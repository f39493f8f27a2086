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

package changedetect

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	snapshotFile = "identifiers.txt"
	addedFile    = "identifiers_added.txt"
	removedFile  = "identifiers_removed.txt"
)

// SnapshotStore persists the identifier set known as of the last
// successful detection run, plus the added/removed deltas from that
// run. Files are newline-delimited identifiers, replaced atomically so
// the snapshot always reflects a complete listing, never a partial one.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore returns a store rooted at dir.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Load reads the persisted identifier set. exists is false on the
// first-ever run, before any snapshot has been written.
func (s *SnapshotStore) Load() (ids mapset.Set[string], exists bool, err error) {
	f, err := os.Open(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return mapset.NewSet[string](), false, nil
		}
		return nil, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	ids = mapset.NewSet[string]()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			ids.Add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return ids, true, nil
}

// Replace atomically persists current as the new snapshot along with
// the added/removed delta files. Either all three files are replaced or
// none are visible half-written.
func (s *SnapshotStore) Replace(current, added, removed mapset.Set[string]) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := s.writeSet(snapshotFile, current); err != nil {
		return err
	}
	if err := s.writeSet(addedFile, added); err != nil {
		return err
	}
	return s.writeSet(removedFile, removed)
}

// LoadAdded reads the added-since-last-run delta file.
func (s *SnapshotStore) LoadAdded() ([]string, error) {
	return s.readLines(addedFile)
}

// LoadRemoved reads the removed-since-last-run delta file.
func (s *SnapshotStore) LoadRemoved() ([]string, error) {
	return s.readLines(removedFile)
}

func (s *SnapshotStore) readLines(name string) ([]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// writeSet writes ids sorted, via temp file + rename.
func (s *SnapshotStore) writeSet(name string, ids mapset.Set[string]) error {
	lines := ids.ToSlice()
	sort.Strings(lines)

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush %s: %w", name, err)
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
