package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/VoxMapDB/voxmap/pkg/mapdata"
)

// SQLite is a backend over a map.sqlite database file, the storage layout
// most worlds on disk use. The schema is a single table keyed by block key:
//
//	CREATE TABLE blocks (pos INTEGER PRIMARY KEY, data BLOB NOT NULL)
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed initializes) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows only one writer per connection; more connections just
	// trade SQLITE_BUSY errors for lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS blocks (pos INTEGER PRIMARY KEY, data BLOB NOT NULL)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize blocks table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get returns the stored bytes for key, or mapdata.ErrKeyNotFound.
func (s *SQLite) Get(ctx context.Context, key int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM blocks WHERE pos = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mapdata.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select block: %w", err)
	}
	return data, nil
}

// Put stores data under key, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, key int64, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (pos, data) VALUES (?, ?)
		 ON CONFLICT(pos) DO UPDATE SET data = excluded.data`, key, data)
	if err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}
	return nil
}

// Keys returns a lazy cursor over all stored keys.
func (s *SQLite) Keys(ctx context.Context) (mapdata.KeyIterator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pos FROM blocks`)
	if err != nil {
		return nil, fmt.Errorf("select block keys: %w", err)
	}
	return &sqliteKeyIterator{rows: rows}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqliteKeyIterator struct {
	rows *sql.Rows
	key  int64
	err  error
}

func (it *sqliteKeyIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next() {
		return false
	}
	if err := it.rows.Scan(&it.key); err != nil {
		it.err = fmt.Errorf("scan block key: %w", err)
		return false
	}
	return true
}

func (it *sqliteKeyIterator) Key() int64 {
	return it.key
}

func (it *sqliteKeyIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *sqliteKeyIterator) Close() error {
	return it.rows.Close()
}

var _ mapdata.Backend = (*SQLite)(nil)
