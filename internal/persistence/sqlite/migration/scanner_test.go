package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanOrdersByNumericVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/10_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
		"sql/2_create_table.sql":    {Data: []byte("-- table\nCREATE TABLE t (a TEXT);")},
		"sql/README.md":             {Data: []byte("ignored")},
		"sql/003_seed_defaults.sql": {Data: []byte("INSERT INTO t VALUES ('x'); INSERT INTO t VALUES ('y');")},
	}

	migrations, err := Scan(fsys, "sql")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
	if got[0] != "2" || got[1] != "003" || got[2] != "10" {
		t.Fatalf("unexpected order: %v", got)
	}
	if migrations[0].Description != "create table" {
		t.Fatalf("unexpected description %q", migrations[0].Description)
	}
	if migrations[0].Checksum == "" {
		t.Fatalf("expected checksum to be populated")
	}
}

func TestScanRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]fstest.MapFS{
		"bad name": {
			"sql/create.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
		},
		"duplicate version": {
			"sql/1_a.sql": {Data: []byte("CREATE TABLE a (x TEXT);")},
			"sql/1_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
		},
		"comments only": {
			"sql/1_empty.sql": {Data: []byte("-- nothing here\n")},
		},
	}
	for name, fsys := range cases {
		fsys := fsys
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Scan(fsys, "sql")
			var migErr *MigrationError
			if !errors.As(err, &migErr) {
				t.Fatalf("expected MigrationError, got %v", err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements("-- header\nCREATE TABLE a (x TEXT);\n\n  CREATE INDEX i ON a(x);\n-- trailing\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a(x)" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}
