package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store"
)

// HiddenTablePrefix marks bookkeeping tables (migrations) that are never
// reported as browsable.
const HiddenTablePrefix = "xwines_"

type Store struct {
	db      *sql.DB
	dialect store.Dialect
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB, dialect store.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Dialect() store.Dialect {
	return s.dialect
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	names, err := s.queryStrings(ctx, s.dialect.ListTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables := names[:0]
	for _, name := range names {
		if strings.HasPrefix(name, HiddenTablePrefix) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, nil
}

func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	columns, err := s.queryStrings(ctx, s.dialect.ColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %q: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, store.ErrNotFound
	}
	return columns, nil
}

func (s *Store) TableDDL(ctx context.Context, table string) (string, bool, error) {
	if s.dialect.DDLSQL == "" {
		return s.synthesizeDDL(ctx, table)
	}

	var ddl sql.NullString
	err := s.db.QueryRowContext(ctx, s.dialect.DDLSQL, table).Scan(&ddl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get ddl of %q: %w", table, err)
	}
	if !ddl.Valid || strings.TrimSpace(ddl.String) == "" {
		return "", false, nil
	}
	return ddl.String, true, nil
}

func (s *Store) synthesizeDDL(ctx context.Context, table string) (string, bool, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ColumnTypesSQL, table)
	if err != nil {
		return "", false, fmt.Errorf("get column types of %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var defs []string
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return "", false, fmt.Errorf("scan column type: %w", err)
		}
		defs = append(defs, s.dialect.QuoteIdent(name)+" "+strings.ToUpper(dataType))
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("iterate column types: %w", err)
	}
	if len(defs) == 0 {
		return "", false, nil
	}
	return "CREATE TABLE " + s.dialect.QuoteIdent(table) + " (" + strings.Join(defs, ", ") + ")", true, nil
}

func (s *Store) Query(ctx context.Context, query string, args ...any) (store.Result, error) {
	if strings.TrimSpace(query) == "" {
		return store.Result{}, fmt.Errorf("sql is required")
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return store.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return store.Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := store.Result{Columns: columns, Rows: make([]store.Row, 0)}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return store.Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, store.NewRow(columns, normalizeValues(values)))
	}
	if err := rows.Err(); err != nil {
		return store.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	observability.ObserveStoreQuery(s.dialect.Name, time.Since(start))
	return result, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339)
		case interface{ Float64() float64 }:
			normalized[i] = typed.Float64()
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
