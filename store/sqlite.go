package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jonfrank/campsite-pipeline/models"
)

const campsiteSchema = `
CREATE TABLE IF NOT EXISTS campsites (
	id          TEXT NOT NULL,
	uuid        TEXT NOT NULL,
	sitename    TEXT NOT NULL,
	rating      TEXT NOT NULL DEFAULT '',
	date_open   TEXT NOT NULL DEFAULT '',
	price_from  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	bullets     TEXT NOT NULL DEFAULT '',
	scraped_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campsites_id ON campsites (id);
`

// SQLiteStore is the cloud-tabular row store. The table is append-only:
// no updates, no deletes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initialises) the campsites table behind
// the given DSN.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping row store: %w", err)
	}
	if _, err := db.ExecContext(ctx, campsiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init campsites table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Exists looks up the stored uid for a derived id.
func (s *SQLiteStore) Exists(ctx context.Context, derivedID string) (string, bool, error) {
	var uid string
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid FROM campsites WHERE id = ? LIMIT 1`, derivedID).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query campsite %q: %w", derivedID, err)
	}
	return uid, true, nil
}

// AppendBatch inserts all rows inside one transaction, so a failed flush
// writes nothing.
func (s *SQLiteStore) AppendBatch(ctx context.Context, rows []models.CampsiteRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campsites (id, uuid, sitename, rating, date_open, price_from, description, bullets, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.DerivedID, row.UID, row.Name, row.Rating, row.DateOpen,
			row.PriceFrom, row.Description, row.Bullets, row.ScrapedAt,
		); err != nil {
			return 0, fmt.Errorf("insert campsite %q: %w", row.DerivedID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit flush: %w", err)
	}
	return written, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
