// Package browser lists, searches and opens rows of any table in the store,
// following the key, display and relation conventions of the catalog.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xwines/xwines/internal/catalog"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store"
)

// ErrNotFound is returned for unknown tables and missing rows.
var ErrNotFound = store.ErrNotFound

const (
	DefaultPageSize      = 50
	DefaultRelationLimit = 50

	relationConcurrency = 4
)

type Options struct {
	PageSize      int
	RelationLimit int
	Logger        *slog.Logger
}

type Browser struct {
	store         store.Store
	catalog       *catalog.Catalog
	pageSize      int
	relationLimit int
	logger        *slog.Logger
}

type Listing struct {
	Table         string      `json:"table"`
	Columns       []string    `json:"columns"`
	Rows          []store.Row `json:"rows"`
	PrimaryKey    string      `json:"primary_key"`
	DisplayColumn string      `json:"display_column"`
	Search        string      `json:"search,omitempty"`
	Page          int         `json:"page"`
	PageSize      int         `json:"page_size"`
	TotalPages    int         `json:"total_pages"`
	TotalRows     int         `json:"total_rows"`
}

type Detail struct {
	Table         string    `json:"table"`
	Row           store.Row `json:"row"`
	PrimaryKey    string    `json:"primary_key"`
	DisplayColumn string    `json:"display_column"`
	Relations     []Related `json:"relations"`
}

// Related holds the child rows of one inverse relation.
type Related struct {
	Table         string      `json:"table"`
	ForeignKey    string      `json:"foreign_key"`
	PrimaryKey    string      `json:"primary_key"`
	DisplayColumn string      `json:"display_column"`
	Rows          []store.Row `json:"rows"`
}

// Relation returns the child rows fetched for table, if any were found.
func (d Detail) Relation(table string) (Related, bool) {
	for _, rel := range d.Relations {
		if rel.Table == table {
			return rel, true
		}
	}
	return Related{}, false
}

func New(st store.Store, cat *catalog.Catalog, opts Options) *Browser {
	if cat == nil {
		cat = catalog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.RelationLimit <= 0 {
		opts.RelationLimit = DefaultRelationLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Browser{
		store:         st,
		catalog:       cat,
		pageSize:      opts.PageSize,
		relationLimit: opts.RelationLimit,
		logger:        opts.Logger,
	}
}

func (b *Browser) Tables(ctx context.Context) ([]string, error) {
	tables, err := b.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (b *Browser) Describe(table string) catalog.TableDescriptor {
	return b.catalog.Describe(table)
}

func (b *Browser) ResolvePrimaryKey(table string) string {
	return b.catalog.PrimaryKey(table)
}

// ListRows returns one page of table, optionally filtered by a case-insensitive
// substring search. Pages are 1-based; pages outside [1, TotalPages] are empty.
func (b *Browser) ListRows(ctx context.Context, table string, page, pageSize int, search string) (listing Listing, err error) {
	start := time.Now()
	defer func() { observability.ObserveBrowse("list", err, time.Since(start)) }()

	if err := b.requireTable(ctx, table); err != nil {
		return Listing{}, err
	}
	if pageSize <= 0 {
		pageSize = b.pageSize
	}
	search = strings.TrimSpace(search)
	dialect := b.store.Dialect()

	args := dialect.NewArgs()
	where := ""
	if search != "" {
		declared, err := b.store.Columns(ctx, table)
		if err != nil {
			return Listing{}, fmt.Errorf("columns of %s: %w", table, err)
		}
		where = searchPredicate(dialect, args, b.catalog.SearchColumns(table, declared), search)
	}

	countSQL := "SELECT COUNT(*) AS " + dialect.QuoteIdent("total") + " FROM " + dialect.QuoteIdent(table) + where
	countResult, err := b.store.Query(ctx, countSQL, args.Values()...)
	if err != nil {
		return Listing{}, fmt.Errorf("count %s: %w", table, err)
	}
	total, err := firstInt(countResult)
	if err != nil {
		return Listing{}, fmt.Errorf("count %s: %w", table, err)
	}

	listing = Listing{
		Table:      table,
		PrimaryKey: b.catalog.PrimaryKey(table),
		Search:     search,
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  total,
		TotalPages: (total + pageSize - 1) / pageSize,
		Rows:       []store.Row{},
	}

	if page >= 1 && page <= listing.TotalPages {
		pageArgs := dialect.NewArgs()
		for _, value := range args.Values() {
			pageArgs.Bind(value)
		}
		limit := pageArgs.Bind(pageSize)
		offset := pageArgs.Bind((page - 1) * pageSize)
		pageSQL := "SELECT " + b.projection(table) + " FROM " + dialect.QuoteIdent(table) + where +
			" ORDER BY " + b.keyExpr(table) + " LIMIT " + limit + " OFFSET " + offset
		result, err := b.store.Query(ctx, pageSQL, pageArgs.Values()...)
		if err != nil {
			return Listing{}, fmt.Errorf("list %s: %w", table, err)
		}
		listing.Columns = result.Columns
		listing.Rows = result.Rows
	}

	var firstRow []string
	if len(listing.Rows) > 0 {
		firstRow = listing.Rows[0].Columns()
	}
	listing.DisplayColumn = b.catalog.ResolveDisplay(table, firstRow)
	return listing, nil
}

// GetDetail returns one row by key together with its non-empty inverse
// relations. Relation lookups that fail are left out of the result.
func (b *Browser) GetDetail(ctx context.Context, table, key string) (detail Detail, err error) {
	start := time.Now()
	defer func() { observability.ObserveBrowse("detail", err, time.Since(start)) }()

	if err := b.requireTable(ctx, table); err != nil {
		return Detail{}, err
	}
	dialect := b.store.Dialect()
	args := dialect.NewArgs()
	query := "SELECT " + b.projection(table) + " FROM " + dialect.QuoteIdent(table) +
		" WHERE " + dialect.Text(b.keyExpr(table)) + " = " + args.Bind(key) + " LIMIT 1"
	result, err := b.store.Query(ctx, query, args.Values()...)
	if err != nil {
		return Detail{}, fmt.Errorf("get %s %q: %w", table, key, err)
	}
	if result.Len() == 0 {
		return Detail{}, fmt.Errorf("%w: %s row %q", ErrNotFound, table, key)
	}
	row := result.Rows[0]

	relations := b.catalog.Relations(table)
	fetched := make([]*Related, len(relations))
	var g errgroup.Group
	g.SetLimit(relationConcurrency)
	for i, rel := range relations {
		g.Go(func() error {
			related, err := b.fetchRelation(ctx, rel, key)
			if err != nil {
				observability.IncrementRelationLookupFailure()
				b.logger.DebugContext(ctx, "relation lookup failed",
					slog.String("table", table),
					slog.String("relation", rel.Table),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if len(related.Rows) > 0 {
				fetched[i] = &related
			}
			return nil
		})
	}
	_ = g.Wait()

	detail = Detail{
		Table:         table,
		Row:           row,
		PrimaryKey:    b.catalog.PrimaryKey(table),
		DisplayColumn: b.catalog.ResolveDisplay(table, row.Columns()),
		Relations:     make([]Related, 0, len(relations)),
	}
	for _, related := range fetched {
		if related != nil {
			detail.Relations = append(detail.Relations, *related)
		}
	}
	return detail, nil
}

func (b *Browser) fetchRelation(ctx context.Context, rel catalog.Relation, key string) (Related, error) {
	dialect := b.store.Dialect()
	args := dialect.NewArgs()
	query := "SELECT " + b.projection(rel.Table) + " FROM " + dialect.QuoteIdent(rel.Table) +
		" WHERE " + dialect.Text(dialect.QuoteIdent(rel.ForeignKey)) + " = " + args.Bind(key) +
		" ORDER BY " + b.keyExpr(rel.Table) + " LIMIT " + args.Bind(b.relationLimit)
	result, err := b.store.Query(ctx, query, args.Values()...)
	if err != nil {
		return Related{}, err
	}
	display := rel.Display
	if display == "" {
		var first []string
		if result.Len() > 0 {
			first = result.Rows[0].Columns()
		}
		display = b.catalog.ResolveDisplay(rel.Table, first)
	}
	return Related{
		Table:         rel.Table,
		ForeignKey:    rel.ForeignKey,
		PrimaryKey:    b.catalog.PrimaryKey(rel.Table),
		DisplayColumn: display,
		Rows:          result.Rows,
	}, nil
}

func (b *Browser) requireTable(ctx context.Context, table string) error {
	tables, err := b.store.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	for _, name := range tables {
		if name == table {
			return nil
		}
	}
	return fmt.Errorf("%w: table %q", ErrNotFound, table)
}

// projection selects every declared column, prefixed by the positional
// identifier for tables keyed by it.
func (b *Browser) projection(table string) string {
	if !b.catalog.IsPositional(table) {
		return "*"
	}
	dialect := b.store.Dialect()
	return dialect.PositionalSelect(b.catalog.PositionalColumn()) + ", " + dialect.QuoteIdent(table) + ".*"
}

func (b *Browser) keyExpr(table string) string {
	dialect := b.store.Dialect()
	if b.catalog.IsPositional(table) {
		// Qualified so it never resolves to the projected text alias.
		return dialect.QuoteIdent(table) + "." + dialect.Positional
	}
	return dialect.QuoteIdent(b.catalog.PrimaryKey(table))
}

func searchPredicate(dialect store.Dialect, args *store.Args, columns []string, term string) string {
	if len(columns) == 0 {
		return ""
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	predicates := make([]string, 0, len(columns))
	for _, column := range columns {
		predicates = append(predicates,
			"LOWER("+dialect.Text(dialect.QuoteIdent(column))+") LIKE "+args.Bind(pattern)+` ESCAPE '\'`)
	}
	return " WHERE " + strings.Join(predicates, " OR ")
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func firstInt(result store.Result) (int, error) {
	if result.Len() == 0 || result.Rows[0].Len() == 0 {
		return 0, fmt.Errorf("empty count result")
	}
	switch typed := result.Rows[0].Values()[0].(type) {
	case int64:
		return int(typed), nil
	case int32:
		return int(typed), nil
	case int:
		return typed, nil
	case float64:
		return int(typed), nil
	case string:
		value, err := strconv.Atoi(typed)
		if err != nil {
			return 0, fmt.Errorf("parse count %q: %w", typed, err)
		}
		return value, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", typed)
	}
}
