package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT PRIMARY KEY,
    mode             TEXT NOT NULL,
    duration_seconds REAL NOT NULL DEFAULT 0,
    tally            TEXT NOT NULL DEFAULT '{}',
    effectiveness    REAL NOT NULL DEFAULT 0,
    overall          INTEGER NOT NULL DEFAULT 0,
    mastery_achieved INTEGER NOT NULL DEFAULT 0,
    flagged          INTEGER NOT NULL DEFAULT 0,
    provider         TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_mode_created ON sessions(mode, created_at);
`

// fixed width so created_at sorts chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrNotFound = errors.New("session not found")

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts rec, filling ID and CreatedAt when they are empty.
func (s *Store) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	tally, err := json.Marshal(rec.Tally)
	if err != nil {
		return fmt.Errorf("encode tally: %w", err)
	}

	const query = `
		INSERT INTO sessions
		(id, mode, duration_seconds, tally, effectiveness, overall, mastery_achieved, flagged, provider, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Mode, rec.DurationSeconds, string(tally), rec.Effectiveness, rec.Overall,
		rec.MasteryAchieved, rec.Flagged, rec.Provider, rec.Summary,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const selectCols = `id, mode, duration_seconds, tally, effectiveness, overall, mastery_achieved, flagged, provider, summary, created_at`

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM sessions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns the newest sessions first. An empty mode lists every mode; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, mode string, limit int) ([]Record, error) {
	return s.list(ctx, mode, limit, false)
}

func (s *Store) list(ctx context.Context, mode string, limit int, scoredOnly bool) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectCols+`
		FROM sessions
		WHERE (? = '' OR mode = ?) AND (? = 0 OR flagged = 0)
		ORDER BY created_at DESC
		LIMIT ?
	`, mode, mode, scoredOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Latest returns the newest session for mode, or nil when there is none.
func (s *Store) Latest(ctx context.Context, mode string) (*Record, error) {
	return first(s.list(ctx, mode, 1, false))
}

// LatestScored is Latest restricted to sessions whose tally can be trusted, skipping
// those flagged for review.
func (s *Store) LatestScored(ctx context.Context, mode string) (*Record, error) {
	return first(s.list(ctx, mode, 1, true))
}

func first(recs []Record, err error) (*Record, error) {
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (s *Store) SetFlagged(ctx context.Context, id string, flagged bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET flagged = ? WHERE id = ?`, flagged, id)
	if err != nil {
		return fmt.Errorf("flag session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec       Record
		tally     string
		createdAt string
	)
	if err := sc.Scan(&rec.ID, &rec.Mode, &rec.DurationSeconds, &tally, &rec.Effectiveness, &rec.Overall,
		&rec.MasteryAchieved, &rec.Flagged, &rec.Provider, &rec.Summary, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(tally), &rec.Tally); err != nil {
		return nil, fmt.Errorf("decode tally: %w", err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	return &rec, nil
}
