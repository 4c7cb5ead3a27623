// Package storage keeps last-known-good CMS responses in a local SQLite
// database so the site keeps rendering while the CMS is down.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	schema "github.com/rubiojr/kallitechnia/pkg/db"
)

const (
	DefaultFilename = "snapshots.db"

	encodingZstd = "zstd"
	encodingRaw  = "raw"
)

// minCompressSize is the body size below which compression is skipped.
const minCompressSize = 512

// Snapshot describes a stored response without its body.
type Snapshot struct {
	Key       string
	Size      int
	Stored    int
	Encoding  string
	UpdatedAt time.Time
}

type SnapshotStore struct {
	db      *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// OpenDir opens the snapshot database inside dir.
func OpenDir(dir string) (*SnapshotStore, error) {
	return Open(filepath.Join(dir, DefaultFilename))
}

func Open(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := schema.InitializeDatabase(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &SnapshotStore{db: db, encoder: encoder, decoder: decoder}, nil
}

func (s *SnapshotStore) Close() error {
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		s.db.Close()
		return fmt.Errorf("closing zstd encoder: %w", err)
	}
	return s.db.Close()
}

// Put stores body under key, replacing any previous snapshot.
func (s *SnapshotStore) Put(ctx context.Context, key string, body []byte) error {
	stored, encoding := body, encodingRaw
	if len(body) >= minCompressSize {
		stored, encoding = s.encoder.EncodeAll(body, nil), encodingZstd
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (key, body, encoding, size, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, stored, encoding, len(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing snapshot %s: %w", key, err)
	}
	return nil
}

// Get returns the snapshot for key and when it was stored. ok is false
// when there is none.
func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var (
		stored   []byte
		encoding string
		updated  time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, encoding, updated_at FROM snapshots WHERE key = ?`, key,
	).Scan(&stored, &encoding, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}

	switch encoding {
	case encodingZstd:
		body, err := s.decoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, time.Time{}, false, fmt.Errorf("decompressing snapshot %s: %w", key, err)
		}
		return body, updated, true, nil
	case encodingRaw:
		return stored, updated, true, nil
	default:
		return nil, time.Time{}, false, fmt.Errorf("snapshot %s: unknown encoding %q", key, encoding)
	}
}

// List returns all snapshots, most recent first.
func (s *SnapshotStore) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, size, length(body), encoding, updated_at
		FROM snapshots
		ORDER BY updated_at DESC, key
	`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Key, &snap.Size, &snap.Stored, &snap.Encoding, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Purge deletes snapshots last updated before cutoff. A zero cutoff
// deletes everything.
func (s *SnapshotStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if cutoff.IsZero() {
		res, err = s.db.ExecContext(ctx, `DELETE FROM snapshots`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE updated_at < ?`, cutoff.UTC())
	}
	if err != nil {
		return 0, fmt.Errorf("purging snapshots: %w", err)
	}
	return res.RowsAffected()
}
