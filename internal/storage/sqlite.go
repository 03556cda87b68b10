package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ledger.path is required for sqlite driver")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	ms := int64(5000)
	if cfg.BusyTimeout > 0 {
		ms = cfg.BusyTimeout.Milliseconds()
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, date FROM availability ORDER BY title, date`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var title, date string
		if err := rows.Scan(&title, &date); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		out[title] = append(out[title], date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Save rewrites the full ledger in one transaction, mirroring the file
// driver's whole-document semantics.
func (s *sqliteStore) Save(ctx context.Context, entries map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability`); err != nil {
		return err
	}

	titles := make([]string, 0, len(entries))
	for t := range entries {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	for _, title := range titles {
		for _, date := range entries[title] {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO availability(title, date) VALUES(?,?)`,
				title, date,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
