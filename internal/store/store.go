package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: not found")

// Store is the read surface the browser, the assistant and the reports need
// from the relational backend.
type Store interface {
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]string, error)
	Query(ctx context.Context, query string, args ...any) (Result, error)
	// TableDDL returns the structural definition of a table, or false when the
	// backend has none recorded for it.
	TableDDL(ctx context.Context, table string) (string, bool, error)
	Dialect() Dialect
}

type Result struct {
	Columns []string
	Rows    []Row
}

func (r Result) Len() int {
	return len(r.Rows)
}
