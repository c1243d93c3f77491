// Package importer loads the flat X-Wines dataset into the relational store.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/storage"
	"github.com/xwines/xwines/internal/store"
)

// Tables lists the dataset tables parents first.
var Tables = []string{"Countries", "Region", "Winery", "Wine", "Grapes", "Harmonize", "Vintages"}

// Counts holds the number of rows inserted per table.
type Counts map[string]int

type Options struct {
	Source  string
	Format  string
	Replace bool
}

type Importer struct {
	db      *sql.DB
	dialect store.Dialect
	objects storage.ObjectStore
	logger  *slog.Logger
}

// New returns an importer writing through db. objects may be nil, in which
// case only local sources can be read.
func New(db *sql.DB, dialect store.Dialect, objects storage.ObjectStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Importer{db: db, dialect: dialect, objects: objects, logger: logger}
}

func (i *Importer) Run(ctx context.Context, opts Options) (Counts, error) {
	start := time.Now()
	source := strings.TrimSpace(opts.Source)
	if source == "" {
		return nil, fmt.Errorf("import source is required")
	}
	format, err := DetectFormat(opts.Format, source)
	if err != nil {
		return nil, err
	}

	body, contentType, err := i.open(ctx, source)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Format) == "" && contentType != "" {
		format = formatForContentType(contentType)
	}
	records, err := decode(format, body)
	_ = body.Close()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	dataset := Normalize(records)

	if opts.Replace {
		if err := i.clear(ctx); err != nil {
			return nil, err
		}
	}
	counts, err := i.insert(ctx, dataset)
	if err != nil {
		return nil, err
	}
	for _, table := range Tables {
		observability.AddImportedRows(table, counts[table])
	}
	i.logger.InfoContext(ctx, "dataset imported",
		slog.String("source", source),
		slog.String("format", string(format)),
		slog.Int("records", len(records)),
		slog.Int("wines", counts["Wine"]),
		slog.Duration("elapsed", time.Since(start)),
	)
	return counts, nil
}

// Publish uploads a local dataset file into the object store under dir and
// returns the source URI that Run accepts for it.
func (i *Importer) Publish(ctx context.Context, localPath, dir string) (string, error) {
	if i.objects == nil {
		return "", fmt.Errorf("object store is not configured")
	}
	key, err := storage.DatasetKey(dir, localPath)
	if err != nil {
		return "", err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()
	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}
	info, err := i.objects.Put(ctx, key, file, stat.Size(), storage.PutOptions{ContentType: storage.ContentTypeFor(localPath)})
	if err != nil {
		return "", err
	}
	i.logger.InfoContext(ctx, "dataset published", slog.String("key", key), slog.Int64("size", info.Size))
	return storage.URIScheme + key, nil
}

// open returns the dataset body and, for object-store sources, the content
// type it was published with.
func (i *Importer) open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	key, remote, err := storage.ParseObjectURI(source)
	if err != nil {
		return nil, "", err
	}
	if !remote {
		file, err := os.Open(source)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", source, err)
		}
		return file, "", nil
	}
	if i.objects == nil {
		return nil, "", fmt.Errorf("object store is not configured for %s", source)
	}
	info, err := i.objects.Stat(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", source, err)
	}
	i.logger.DebugContext(ctx, "fetching dataset",
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
		slog.String("content_type", info.ContentType),
	)
	body, err := i.objects.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", source, err)
	}
	return body, info.ContentType, nil
}

// clear empties the dataset tables children first. It commits on its own so
// backends that reject re-inserting deleted keys within one transaction still
// accept the following insert.
func (i *Importer) clear(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	for idx := len(Tables) - 1; idx >= 0; idx-- {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+i.dialect.QuoteIdent(Tables[idx])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear %s: %w", Tables[idx], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (i *Importer) insert(ctx context.Context, ds Dataset) (Counts, error) {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	counts := Counts{}
	batches := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"Countries", []string{"Code", "Country"}, countryRows(ds.Countries)},
		{"Region", []string{"RegionID", "RegionName", "Code"}, regionRows(ds.Regions)},
		{"Winery", []string{"WineryID", "WineryName", "Website"}, wineryRows(ds.Wineries)},
		{"Wine", []string{"WineID", "WineName", "Type", "Elaborate", "Body", "Acidity", "ABV", "WineryID", "RegionID"}, wineRows(ds.Wines)},
		{"Grapes", []string{"WineID", "Grape"}, valueRows(ds.Grapes)},
		{"Harmonize", []string{"WineID", "Harmonize"}, valueRows(ds.Harmonize)},
		{"Vintages", []string{"WineID", "Vintage"}, valueRows(ds.Vintages)},
	}
	for _, batch := range batches {
		n, err := i.insertRows(ctx, tx, batch.table, batch.columns, batch.rows)
		if err != nil {
			return nil, err
		}
		counts[batch.table] = n
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return counts, nil
}

func (i *Importer) insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for idx, column := range columns {
		quoted[idx] = i.dialect.QuoteIdent(column)
		marks[idx] = i.dialect.Placeholder(idx + 1)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+i.dialect.QuoteIdent(table)+
		" ("+strings.Join(quoted, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return 0, fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for n, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("insert %s row %d: %w", table, n+1, err)
		}
	}
	return len(rows), nil
}

func countryRows(in []Country) [][]any {
	out := make([][]any, 0, len(in))
	for _, c := range in {
		out = append(out, []any{c.Code, c.Name})
	}
	return out
}

func regionRows(in []Region) [][]any {
	out := make([][]any, 0, len(in))
	for _, r := range in {
		out = append(out, []any{r.ID, r.Name, r.Code})
	}
	return out
}

func wineryRows(in []Winery) [][]any {
	out := make([][]any, 0, len(in))
	for _, w := range in {
		out = append(out, []any{w.ID, w.Name, nullable(w.Website)})
	}
	return out
}

func wineRows(in []Wine) [][]any {
	out := make([][]any, 0, len(in))
	for _, w := range in {
		out = append(out, []any{
			w.ID, w.Name, nullable(w.Type), nullable(w.Elaborate), nullable(w.Body), nullable(w.Acidity),
			nullable(w.ABV), nullable(w.WineryID), nullable(w.RegionID),
		})
	}
	return out
}

func valueRows(in []WineValue) [][]any {
	out := make([][]any, 0, len(in))
	for _, v := range in {
		out = append(out, []any{v.WineID, v.Value})
	}
	return out
}

// nullable unwraps optional values so every driver receives a plain value or nil.
func nullable[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}
