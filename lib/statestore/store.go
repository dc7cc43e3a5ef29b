// Package statestore persists per-stream replication bookmarks between
// sync runs so incremental streams only request data newer than what was
// already extracted.
package statestore

import (
	"context"
	"database/sql"
	"os"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
    stream          TEXT NOT NULL,
    partition       TEXT NOT NULL DEFAULT '',
    replication_key TEXT NOT NULL,
    value           INTEGER NOT NULL,
    PRIMARY KEY (stream, partition)
);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the bookmark database. path is
// either a local sqlite file, ":memory:", or a libsql URL for a remote
// replica.
func Open(path string) (*Store, error) {
	var db *sql.DB
	var err error
	if strings.HasPrefix(path, "libsql://") ||
		strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") {
		db, err = sql.Open("libsql", path)
	} else {
		if path != ":memory:" {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				f, err := os.Create(path)
				if err != nil {
					return nil, err
				}
				f.Close()
			}
		}
		db, err = sql.Open("sqlite", path)
		if err == nil {
			// see https://stackoverflow.com/questions/35804884 for why
			// sqlite needs a single writer connection
			db.SetMaxOpenConns(1)
			_, err = db.Exec("PRAGMA journal_mode=WAL")
		}
	}
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an already-open database, creating the schema if needed.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Bookmark returns the stored replication-key value for a stream; ok is
// false when the stream has never completed a sync. Child streams keep
// one bookmark per parent-record partition so a slow partition is never
// filtered by a faster one's progress; top-level streams use the empty
// partition.
func (s *Store) Bookmark(ctx context.Context, stream, partition string) (value int64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT value FROM bookmarks WHERE stream = ? AND partition = ?",
		stream, partition)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (s *Store) SetBookmark(ctx context.Context, stream, partition, replicationKey string, value int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (stream, partition, replication_key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (stream, partition) DO UPDATE SET
			replication_key = excluded.replication_key,
			value = excluded.value`,
		stream, partition, replicationKey, value)
	return err
}

// All returns every bookmark keyed by stream name, shaped for a STATE
// message. Top-level streams map to {key: value}; partitioned streams
// map to {partition: {key: value}}.
func (s *Store) All(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT stream, partition, replication_key, value FROM bookmarks ORDER BY stream, partition")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := map[string]any{}
	for rows.Next() {
		var stream, partition, key string
		var value int64
		if err := rows.Scan(&stream, &partition, &key, &value); err != nil {
			return nil, err
		}
		if partition == "" {
			bookmarks[stream] = map[string]any{key: value}
			continue
		}
		partitions, ok := bookmarks[stream].(map[string]any)
		if !ok {
			partitions = map[string]any{}
			bookmarks[stream] = partitions
		}
		partitions[partition] = map[string]any{key: value}
	}
	return bookmarks, rows.Err()
}
