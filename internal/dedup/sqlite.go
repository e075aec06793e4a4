package dedup

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "dedup sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "dedup sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS notified_deals (
	id          TEXT NOT NULL,
	deal_id     TEXT PRIMARY KEY,
	notified_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notified_deals_notified_at ON notified_deals(notified_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "dedup sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT deal_id, notified_at FROM notified_deals ORDER BY notified_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "dedup sqlite: load")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.DealID, &r.NotifiedAt); err != nil {
			return nil, eris.Wrap(err, "dedup sqlite: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "dedup sqlite: load iterate")
}

func (s *SQLiteStore) Reserve(ctx context.Context, dealID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notified_deals (id, deal_id, notified_at) VALUES (?, ?, ?)
		 ON CONFLICT(deal_id) DO NOTHING`,
		uuid.New().String(), dealID, at.UTC(),
	)
	return eris.Wrapf(err, "dedup sqlite: reserve %s", dealID)
}
