package nl2sql

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xwines/xwines/internal/catalog"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store"
)

const dataContextMarker = "\n/* DATABASE DATA CONTEXT */"

// SchemaContext builds the schema description sent to the translator once
// and serves the same text for the rest of the process lifetime.
type SchemaContext struct {
	store   store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger

	once sync.Once
	text string
}

func NewSchemaContext(st store.Store, cat *catalog.Catalog, logger *slog.Logger) *SchemaContext {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SchemaContext{store: st, catalog: cat, logger: logger}
}

// Text returns the cached context, building it on first use. The build is
// detached from ctx cancellation so an abandoned first request cannot leave
// a truncated context behind.
func (s *SchemaContext) Text(ctx context.Context) string {
	s.once.Do(func() {
		s.text = s.build(context.WithoutCancel(ctx))
	})
	return s.text
}

func (s *SchemaContext) build(ctx context.Context) string {
	start := time.Now()
	defer func() { observability.ObserveSchemaContextBuild(time.Since(start)) }()

	parts := make([]string, 0, 16)
	for _, table := range s.catalog.ContextTables() {
		ddl, ok, err := s.store.TableDDL(ctx, table)
		if err != nil {
			s.logger.WarnContext(ctx, "schema context ddl failed", slog.String("table", table), slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		parts = append(parts, strings.Join(strings.Fields(ddl), " ")+";")
	}

	parts = append(parts, dataContextMarker)
	dialect := s.store.Dialect()
	for _, sample := range s.catalog.Samples() {
		column := dialect.QuoteIdent(sample.Column)
		args := dialect.NewArgs()
		query := "SELECT DISTINCT " + column + " FROM " + dialect.QuoteIdent(sample.Table) +
			" WHERE " + column + " IS NOT NULL ORDER BY 1 LIMIT " + args.Bind(sample.Limit)
		result, err := s.store.Query(ctx, query, args.Values()...)
		if err != nil {
			s.logger.DebugContext(ctx, "schema context sample failed",
				slog.String("table", sample.Table),
				slog.String("column", sample.Column),
				slog.String("error", err.Error()),
			)
			continue
		}
		values := make([]string, 0, result.Len())
		for _, row := range result.Rows {
			values = append(values, row.String(sample.Column))
		}
		parts = append(parts, "-- Ex. values for "+sample.Table+"."+sample.Column+": "+strings.Join(values, ", "))
	}
	return strings.Join(parts, "\n")
}
