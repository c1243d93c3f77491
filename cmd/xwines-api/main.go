package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xwines/xwines/internal/api"
	"github.com/xwines/xwines/internal/api/uistatic"
	"github.com/xwines/xwines/internal/assistant"
	"github.com/xwines/xwines/internal/auth"
	"github.com/xwines/xwines/internal/browser"
	"github.com/xwines/xwines/internal/catalog"
	"github.com/xwines/xwines/internal/config"
	"github.com/xwines/xwines/internal/importer"
	"github.com/xwines/xwines/internal/nl2sql"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store/sqldb"
)

func main() {
	cfg, err := config.LoadFromEnv("xwines-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, dialect, err := sqldb.Open(context.Background(), sqldb.DBConfig{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	st := sqldb.New(db, dialect)

	cat := catalog.Default()
	if cfg.Catalog.File != "" {
		cat, err = catalog.Load(cfg.Catalog.File)
		if err != nil {
			logger.Error("failed to load catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}
	tableBrowser := browser.New(st, cat, browser.Options{
		PageSize:      cfg.Browser.PageSize,
		RelationLimit: cfg.Browser.RelationLimit,
		Logger:        logger,
	})

	var translator nl2sql.Translator
	if nl2sql.CredentialConfigured(cfg.AI.APIKey) {
		translator, err = nl2sql.New(context.Background(), nl2sql.Config{
			Provider:    cfg.AI.Provider,
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("assistant disabled: translation credential is not configured", slog.String("provider", cfg.AI.Provider))
	}
	schema := nl2sql.NewSchemaContext(st, cat, logger)
	questionService := assistant.New(st, assistant.Options{
		Credential:    cfg.AI.APIKey,
		Translator:    translator,
		Schema:        schema,
		AdvisoryRows:  cfg.AI.AdvisoryRows,
		RequireSelect: cfg.AI.RequireSelect,
		Logger:        logger,
	})

	deps := api.Dependencies{
		Logger:    logger,
		Browser:   tableBrowser,
		Store:     st,
		Assistant: questionService,
		UI:        uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckStore(st),
			api.CheckTables(tableBrowser, importer.Tables...),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("authentication is required but no static keys are configured; every request will be rejected")
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the schema context so the first question does not pay for it.
	go func() {
		text := schema.Text(ctx)
		logger.Info("schema context ready", slog.Int("bytes", len(text)))
	}()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("store", dialect.Name))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
