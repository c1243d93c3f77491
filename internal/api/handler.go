// Package api serves the browser, reports and assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xwines/xwines/internal/assistant"
	"github.com/xwines/xwines/internal/browser"
	"github.com/xwines/xwines/internal/config"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store"
)

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Browser           *browser.Browser
	// Store runs the canned reports.
	Store     store.Store
	Assistant *assistant.Service
	UI        http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables/{table}/rows", func(w http.ResponseWriter, r *http.Request) {
		handleListRows(cfg, deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables/{table}/rows/{key}", func(w http.ResponseWriter, r *http.Request) {
		handleGetRow(deps, w, r)
	})
	protected.HandleFunc("GET /v1/reports", func(w http.ResponseWriter, r *http.Request) {
		handleListReports(w, r)
	})
	protected.HandleFunc("GET /v1/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleRunReport(deps, w, r)
	})
	protected.HandleFunc("GET /v1/assistant/schema", func(w http.ResponseWriter, r *http.Request) {
		handleAssistantSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/assistant/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAssistantAsk(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/tables", protectedHandler)
	mux.Handle("GET /v1/tables/{table}/rows", protectedHandler)
	mux.Handle("GET /v1/tables/{table}/rows/{key}", protectedHandler)
	mux.Handle("GET /v1/reports", protectedHandler)
	mux.Handle("GET /v1/reports/{id}", protectedHandler)
	mux.Handle("GET /v1/assistant/schema", protectedHandler)
	mux.Handle("POST /v1/assistant/ask", protectedHandler)
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckStore reports the store as ready once it answers a ping.
func CheckStore(st interface{ HealthCheck(context.Context) error }) ReadinessCheck {
	return func(ctx context.Context) error {
		if st == nil {
			return errors.New("store is not configured")
		}
		return st.HealthCheck(ctx)
	}
}

// CheckTables requires the named tables to exist, so a server pointed at an
// empty database reports not ready until it is migrated.
func CheckTables(b *browser.Browser, required ...string) ReadinessCheck {
	return func(ctx context.Context) error {
		if b == nil {
			return errors.New("browser is not configured")
		}
		tables, err := b.Tables(ctx)
		if err != nil {
			return err
		}
		present := make(map[string]bool, len(tables))
		for _, table := range tables {
			present[table] = true
		}
		for _, table := range required {
			if !present[table] {
				return fmt.Errorf("table %s is missing", table)
			}
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
