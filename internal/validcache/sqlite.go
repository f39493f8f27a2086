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

package validcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS validation_records (
	identifier   TEXT PRIMARY KEY,
	is_readable  INTEGER NOT NULL,
	is_compliant INTEGER NOT NULL,
	checked_at   INTEGER NOT NULL
);`

// SQLiteStore backs the validation cache with an embedded sqlite
// database. Records are upserted whole, so an interrupted run never
// leaves a half-written record behind.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open validation cache: %w", err)
	}
	// Single writer keeps upserts serialized; the pool is I/O bound on
	// the network, not on the cache.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create validation schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the current record for identifier, if one exists.
func (s *SQLiteStore) Get(ctx context.Context, identifier string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identifier, is_readable, is_compliant, checked_at
		 FROM validation_records WHERE identifier = ?`, identifier)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query validation record: %w", err)
	}
	return rec, true, nil
}

// Put writes rec as the current record for its identifier, replacing
// any previous verdict.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validation_records (identifier, is_readable, is_compliant, checked_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(identifier) DO UPDATE SET
			is_readable = excluded.is_readable,
			is_compliant = excluded.is_compliant,
			checked_at = excluded.checked_at`,
		rec.Identifier, boolToInt(rec.IsReadable), boolToInt(rec.IsCompliant), rec.CheckedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("upsert validation record: %w", err)
	}
	return nil
}

// All returns every current record in the cache.
func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, is_readable, is_compliant, checked_at
		 FROM validation_records ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("list validation records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan validation record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var readable, compliant int
	var checkedAt int64
	if err := row.Scan(&rec.Identifier, &readable, &compliant, &checkedAt); err != nil {
		return Record{}, err
	}
	rec.IsReadable = readable != 0
	rec.IsCompliant = compliant != 0
	rec.CheckedAt = time.Unix(checkedAt, 0).UTC()
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
