package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shouni/go-scholarship-scan/pkg/types"
)

// SQLiteStore implements Sink using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Scan は保存済みの1回分のスキャン結果です。
type Scan struct {
	ID        string                   `json:"id"`
	URL       string                   `json:"url"`
	Entries   []types.ScholarshipEntry `json:"points"`
	CreatedAt time.Time                `json:"created_at"`
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// PRAGMA は接続ごとの設定なので、プールを1接続に固定して全クエリに適用されるようにする。
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite は NewSQLite で開いたうえでマイグレーションまで済ませた store を返します。
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	s, err := NewSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	points     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save は1回分のスキャン結果を1行として保存します。
func (s *SQLiteStore) Save(ctx context.Context, sourceURL string, entries []types.ScholarshipEntry) error {
	if entries == nil {
		entries = []types.ScholarshipEntry{}
	}
	points, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal points")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (id, url, points, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), sourceURL, string(points), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert scan")
}

// ListScans は url の保存済みスキャンを新しい順に返します。
func (s *SQLiteStore) ListScans(ctx context.Context, url string, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, points, created_at FROM scans WHERE url = ? ORDER BY created_at DESC LIMIT ?`,
		url, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		var points string
		if err := rows.Scan(&sc.ID, &sc.URL, &points, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		if err := json.Unmarshal([]byte(points), &sc.Entries); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal points")
		}
		scans = append(scans, sc)
	}
	return scans, eris.Wrap(rows.Err(), "sqlite: iterate scans")
}
