// Package store persists filter results to a SQLite database so expensive
// passes survive process restarts. It backs the in-memory cache as a
// second-level lookup.
package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/rasterfilter/internal/cache"
)

// Store is a SQLite-backed result archive keyed the same way as the
// in-memory cache. Pixel buffers are gzip-compressed before storage.
// database/sql serializes access, so Store is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the result database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS results (
			target_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			kind TEXT NOT NULL,
			params TEXT NOT NULL,
			mask_digest INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			pix BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS result_key
			ON results (target_id, revision, kind, params, mask_digest);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Put stores or replaces the result for key.
func (s *Store) Put(key cache.Key, pix []uint8, width, height int) error {
	compressed, err := gzipCompress(pix)
	if err != nil {
		return fmt.Errorf("failed to compress result for target %q: %w", key.TargetID, err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO results
			(target_id, revision, kind, params, mask_digest, width, height, pix)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.TargetID, int64(key.Revision), key.Kind, key.Params, int64(key.MaskDigest),
		width, height, compressed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for target %q: %w", key.TargetID, err)
	}
	return nil
}

// Get loads the result for key. A missing row yields (nil, nil) so the
// caller treats it as an ordinary miss and recomputes.
func (s *Store) Get(key cache.Key) (*cache.Result, error) {
	var (
		width, height int
		compressed    []byte
	)
	err := s.db.QueryRow(
		`SELECT width, height, pix FROM results
			WHERE target_id=? AND revision=? AND kind=? AND params=? AND mask_digest=?`,
		key.TargetID, int64(key.Revision), key.Kind, key.Params, int64(key.MaskDigest),
	).Scan(&width, &height, &compressed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result for target %q: %w", key.TargetID, err)
	}

	pix, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress result for target %q: %w", key.TargetID, err)
	}

	return &cache.Result{Pix: pix, Width: width, Height: height}, nil
}

// DeleteTarget removes every stored result for the given target, returning
// the number of rows deleted.
func (s *Store) DeleteTarget(targetID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM results WHERE target_id=?", targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete results for target %q: %w", targetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}

// Len reports the number of stored results.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
