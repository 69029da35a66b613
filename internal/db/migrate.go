package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrMigrationChanged is returned when an already applied migration file no
// longer matches the checksum recorded when it ran.
var ErrMigrationChanged = errors.New("applied migration was modified")

type migration struct {
	version  int
	name     string
	body     string
	checksum string
}

// Migrate applies every embedded migration newer than the recorded schema
// version, each in its own transaction.
func Migrate(ctx context.Context, s *sql.DB) error {
	return migrate(ctx, s, migrationsFS)
}

func migrate(ctx context.Context, s *sql.DB, src fs.FS) error {
	if _, err := s.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  checksum TEXT NOT NULL,
  applied_at INTEGER NOT NULL
);
`); err != nil {
		return err
	}

	ms, err := loadMigrations(src)
	if err != nil {
		return err
	}
	applied, err := appliedChecksums(ctx, s)
	if err != nil {
		return err
	}

	for _, m := range ms {
		if sum, ok := applied[m.version]; ok {
			if sum != m.checksum {
				return fmt.Errorf("%s: %w", m.name, ErrMigrationChanged)
			}
			continue
		}
		if err := m.apply(ctx, s); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}

// loadMigrations reads NNNN_name.sql files from src, ordered by version.
func loadMigrations(src fs.FS) ([]migration, error) {
	names, err := fs.Glob(src, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	seen := make(map[int]string, len(names))
	ms := make([]migration, 0, len(names))
	for _, path := range names {
		name := strings.TrimPrefix(path, "migrations/")
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("migration %s: bad version %q", name, prefix)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, v)
		}
		seen[v] = name

		body, err := fs.ReadFile(src, path)
		if err != nil {
			return nil, err
		}
		h := sha256.Sum256(body)
		ms = append(ms, migration{version: v, name: name, body: string(body), checksum: hex.EncodeToString(h[:])})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
	return ms, nil
}

func appliedChecksums(ctx context.Context, s *sql.DB) (map[int]string, error) {
	rows, err := s.QueryContext(ctx, "SELECT version, checksum FROM schema_version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var v int
		var sum string
		if err := rows.Scan(&v, &sum); err != nil {
			return nil, err
		}
		out[v] = sum
	}
	return out, rows.Err()
}

func (m migration) apply(ctx context.Context, s *sql.DB) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version(version, name, checksum, applied_at) VALUES(?, ?, ?, ?)",
		m.version, m.name, m.checksum, nowUnix()); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.sql.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}
