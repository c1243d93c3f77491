package store

import (
	"reflect"
	"testing"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]string{
		"sqlite":     "sqlite",
		"SQLite3":    "sqlite",
		"duckdb":     "duckdb",
		"postgres":   "postgres",
		" pgx ":      "postgres",
		"postgresql": "postgres",
	}
	for input, want := range cases {
		dialect, err := DialectFor(input)
		if err != nil {
			t.Fatalf("DialectFor(%q) error = %v", input, err)
		}
		if dialect.Name != want {
			t.Fatalf("DialectFor(%q).Name = %q, want %q", input, dialect.Name, want)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("DialectFor(oracle) expected error")
	}
}

func TestArgsBindsDialectPlaceholders(t *testing.T) {
	pg := Postgres.NewArgs()
	if got := pg.Bind("a") + "," + pg.Bind(2); got != "$1,$2" {
		t.Fatalf("postgres placeholders = %q", got)
	}
	if !reflect.DeepEqual(pg.Values(), []any{"a", 2}) {
		t.Fatalf("Values() = %#v", pg.Values())
	}

	lite := SQLite.NewArgs()
	if got := lite.Bind("a") + "," + lite.Bind(2); got != "?,?" {
		t.Fatalf("sqlite placeholders = %q", got)
	}
}

func TestQuoteIdentAndPositionalSelect(t *testing.T) {
	if got := SQLite.QuoteIdent(`Wi"ne`); got != `"Wi""ne"` {
		t.Fatalf("QuoteIdent() = %q", got)
	}
	if got := SQLite.PositionalSelect("rowid"); got != `CAST(rowid AS TEXT) AS "rowid"` {
		t.Fatalf("SQLite.PositionalSelect() = %q", got)
	}
	if got := Postgres.PositionalSelect("rowid"); got != `CAST(ctid AS TEXT) AS "rowid"` {
		t.Fatalf("Postgres.PositionalSelect() = %q", got)
	}
}
