package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xwines/xwines/internal/config"
	"github.com/xwines/xwines/internal/importer"
	"github.com/xwines/xwines/internal/migrations"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/storage"
	s3store "github.com/xwines/xwines/internal/storage/s3"
	"github.com/xwines/xwines/internal/store/sqldb"
)

func main() {
	cfg, err := config.LoadFromEnv("xwines-import")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	source := flag.String("source", cfg.Import.Source, "dataset file path or s3://key")
	format := flag.String("format", cfg.Import.Format, "dataset format: csv|parquet (detected from the name when empty)")
	replace := flag.Bool("replace", cfg.Import.Replace, "clear the dataset tables before importing")
	publish := flag.Bool("publish", false, "upload the local source to the object store and import from there")
	dir := flag.String("dir", "datasets", "object store directory for published datasets")
	migrate := flag.Bool("migrate", false, "apply pending schema migrations first")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := sqldb.Open(ctx, sqldb.DBConfig{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
	})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *migrate {
		applied, err := migrations.NewRunner(dialect).Up(ctx, db, 0)
		if err != nil {
			logger.Error("migration failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("count", applied))
	}

	var objects storage.ObjectStore
	if cfg.ObjectStore.Endpoint != "" {
		objects, err = s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: *publish,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	imp := importer.New(db, dialect, objects, logger)
	if *publish {
		uri, err := imp.Publish(ctx, *source, *dir)
		if err != nil {
			logger.Error("publish failed", slog.Any("error", err))
			os.Exit(1)
		}
		*source = uri
	}

	counts, err := imp.Run(ctx, importer.Options{
		Source:  *source,
		Format:  *format,
		Replace: *replace,
	})
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}
	attrs := make([]any, 0, len(importer.Tables))
	for _, table := range importer.Tables {
		attrs = append(attrs, slog.Int(table, counts[table]))
	}
	logger.Info("import finished", attrs...)
}
