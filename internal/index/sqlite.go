package index

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "lembra/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteIndex struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Index, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("index.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteIndex{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteIndex) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteIndex) Get(ctx context.Context, reminderID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, handle FROM trigger_handles WHERE reminder_id = ? ORDER BY position`,
		reminderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Handle); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Put replaces the id's rows in one transaction so readers never observe a
// partial entry list.
func (s *sqliteIndex) Put(ctx context.Context, reminderID string, entries []Entry) error {
	reminderID = strings.TrimSpace(reminderID)
	if reminderID == "" {
		return errors.New("empty reminder id")
	}
	if len(entries) == 0 {
		return s.Remove(ctx, reminderID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trigger_handles WHERE reminder_id = ?`, reminderID); err != nil {
		return err
	}
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trigger_handles(reminder_id, key, handle, position) VALUES(?,?,?,?)`,
			reminderID, e.Key, e.Handle, i,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteIndex) Remove(ctx context.Context, reminderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trigger_handles WHERE reminder_id = ?`, reminderID)
	return err
}

func (s *sqliteIndex) All(ctx context.Context) (map[string][]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id, key, handle FROM trigger_handles ORDER BY reminder_id, position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]Entry{}
	for rows.Next() {
		var id string
		var e Entry
		if err := rows.Scan(&id, &e.Key, &e.Handle); err != nil {
			return nil, err
		}
		out[id] = append(out[id], e)
	}
	return out, rows.Err()
}

func (s *sqliteIndex) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteIndex) PutMeta(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty meta key")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}
