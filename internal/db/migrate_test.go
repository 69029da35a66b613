package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	s, err := sql.Open("sqlite", dsn(filepath.Join(t.TempDir(), "raw.db")))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	s.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRecordsSchemaVersion(t *testing.T) {
	d := openTestDB(t)
	v, err := d.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
}

func TestMigrateIsIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := openRaw(t)
	src := fstest.MapFS{
		"migrations/0002_b.sql": {Data: []byte("INSERT INTO t(v) VALUES('second');")},
		"migrations/0001_a.sql": {Data: []byte("CREATE TABLE t (v TEXT);")},
	}
	for i := 0; i < 2; i++ {
		if err := migrate(ctx, s, src); err != nil {
			t.Fatalf("migrate #%d: %v", i, err)
		}
	}
	var n int
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestMigrateDetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	s := openRaw(t)
	src := fstest.MapFS{"migrations/0001_a.sql": {Data: []byte("CREATE TABLE t (v TEXT);")}}
	if err := migrate(ctx, s, src); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	src["migrations/0001_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE t (v INTEGER);")}
	if err := migrate(ctx, s, src); !errors.Is(err, ErrMigrationChanged) {
		t.Fatalf("err = %v, want ErrMigrationChanged", err)
	}
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	cases := []fstest.MapFS{
		{"migrations/init.sql": {Data: []byte("")}},
		{"migrations/x_init.sql": {Data: []byte("")}},
		{"migrations/0001_a.sql": {Data: []byte("")}, "migrations/01_b.sql": {Data: []byte("")}},
	}
	for i, src := range cases {
		if _, err := loadMigrations(src); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
