package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultTable = "schema_migrations"

// Manager applies SQL migration files from a directory, one transaction
// per file, recording applied names in a bookkeeping table.
type Manager struct {
	db    *sql.DB
	dir   string
	table string
}

// NewManager constructs a Manager over the given migrations directory.
func NewManager(db *sql.DB, dir string) *Manager {
	return &Manager{db: db, dir: dir, table: defaultTable}
}

// Up applies every pending migration in lexical order and returns the
// names it applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	files, err := m.pendingFiles(applied)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.applyOne(ctx, name, string(data)); err != nil {
			return done, fmt.Errorf("apply migration %s: %w", name, err)
		}
		done = append(done, name)
	}
	return done, nil
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(
		`create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, m.table))
	return err
}

func (m *Manager) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, m.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = struct{}{}
	}
	return applied, rows.Err()
}

func (m *Manager) pendingFiles(applied map[string]struct{}) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		if _, ok := applied[e.Name()]; ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) applyOne(ctx context.Context, name, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name) values($1)`, m.table), name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
