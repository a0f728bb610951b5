package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on modernc.org/sqlite (CGO-free). The path
// is a filesystem location for the database file; ":memory:" works for
// tests.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the SQLite database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// Two wrapper processes against the same store is the expected worst
	// case; a short busy timeout rides out their write overlap.
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions(
			id TEXT PRIMARY KEY,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			total_tokens INTEGER DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_end_time ON sessions(end_time);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_total_tokens ON sessions(total_tokens);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start_tokens ON sessions(start_time, total_tokens);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Insert(ctx context.Context, row SessionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, start_time, end_time, total_tokens)
		VALUES(?, ?, ?, ?);`,
		row.ID, row.StartTime, row.EndTime, row.TotalTokens)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, row.ID)
		}
		return err
	}
	return nil
}

// isUniqueViolation matches the modernc driver's primary-key conflict
// error. The driver does not export a typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) FindActive(ctx context.Context, nowMs int64) (*SessionRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, total_tokens
		FROM sessions
		WHERE start_time <= ? AND end_time > ?
		ORDER BY start_time DESC
		LIMIT 1;`, nowMs, nowMs)
	return scanSession(row)
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*SessionRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, total_tokens
		FROM sessions
		WHERE id = ?;`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*SessionRow, error) {
	var r SessionRow
	err := row.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.TotalTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) AddTokens(ctx context.Context, id string, delta int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET total_tokens = total_tokens + ? WHERE id = ?;`,
		delta, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) SetTokens(ctx context.Context, id string, total int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET total_tokens = ? WHERE id = ?;`,
		total, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no session with id %s", id)
	}
	return nil
}

func (s *SQLiteStore) CountSince(ctx context.Context, sinceMs int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE start_time >= ?;`, sinceMs).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStore) SumTokensSince(ctx context.Context, sinceMs int64) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(total_tokens) FROM sessions WHERE start_time >= ?;`, sinceMs).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *SQLiteStore) ListSince(ctx context.Context, sinceMs int64) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, total_tokens
		FROM sessions
		WHERE start_time >= ?
		ORDER BY start_time ASC;`, sinceMs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteKeepingLatest(ctx context.Context, n int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY start_time DESC LIMIT ?
		);`, n)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
