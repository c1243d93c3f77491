package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the per-backend SQL differences. Everything the browser
// generates goes through it so the same query shapes run on SQLite, DuckDB and
// PostgreSQL.
type Dialect struct {
	Name   string
	Driver string

	// Positional is the backend expression for the synthetic per-row
	// identifier used by tables without a single-column key.
	Positional string

	ListTablesSQL  string
	ColumnsSQL     string
	ColumnTypesSQL string
	// DDLSQL is empty when the backend keeps no DDL text; the definition is
	// then synthesized from ColumnTypesSQL.
	DDLSQL string

	numbered bool
}

var (
	SQLite = Dialect{
		Name:           "sqlite",
		Driver:         "sqlite",
		Positional:     "rowid",
		ListTablesSQL:  `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
		ColumnsSQL:     `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
		ColumnTypesSQL: `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`,
		DDLSQL:         `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`,
	}

	DuckDB = Dialect{
		Name:           "duckdb",
		Driver:         "duckdb",
		Positional:     "rowid",
		ListTablesSQL:  `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' AND table_type = 'BASE TABLE' ORDER BY table_name`,
		ColumnsSQL:     `SELECT column_name FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position`,
		ColumnTypesSQL: `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position`,
		DDLSQL:         `SELECT sql FROM duckdb_tables() WHERE schema_name = 'main' AND table_name = ?`,
	}

	Postgres = Dialect{
		Name:           "postgres",
		Driver:         "pgx",
		Positional:     "ctid",
		ListTablesSQL:  `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`,
		ColumnsSQL:     `SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`,
		ColumnTypesSQL: `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`,
		numbered:       true,
	}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported store driver %q", name)
	}
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// Text casts an expression to text so comparisons against request-supplied
// string values behave the same on every backend.
func (d Dialect) Text(expr string) string {
	return "CAST(" + expr + " AS TEXT)"
}

// PositionalSelect projects the synthetic identifier under the given name.
func (d Dialect) PositionalSelect(alias string) string {
	return d.Text(d.Positional) + " AS " + d.QuoteIdent(alias)
}

// Args accumulates bound parameters and hands out matching placeholders.
type Args struct {
	dialect Dialect
	values  []any
}

func (d Dialect) NewArgs() *Args {
	return &Args{dialect: d}
}

func (a *Args) Bind(value any) string {
	a.values = append(a.values, value)
	return a.dialect.Placeholder(len(a.values))
}

func (a *Args) Values() []any {
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out
}
