package observability

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xwines/xwines/internal/config"
)

func TestTraceMiddlewarePreservesIncomingTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := TraceIDFromContext(r.Context()); got != "trace-1" {
			t.Fatalf("TraceIDFromContext() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "trace-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(traceHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceIDFromContext(r.Context()) == "" {
			t.Fatal("expected generated trace id")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Header().Get(traceHeader) == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	if got := TraceIDFromContext(ctx); got != "abc123" {
		t.Fatalf("TraceIDFromContext() = %q", got)
	}
}

func TestTraceMiddlewareReplacesMalformedTraceID(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(traceHeader, "bad id\nwith newline")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen == "" || strings.ContainsAny(seen, " \n") {
		t.Fatalf("trace id = %q", seen)
	}
	if validTraceID(strings.Repeat("a", maxTraceIDLength+1)) {
		t.Fatal("validTraceID() accepted an overlong id")
	}
}

func TestLoggingMiddlewareLevelFollowsStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusAccepted:            `"level":"INFO"`,
		http.StatusNotFound:            `"level":"WARN"`,
		http.StatusInternalServerError: `"level":"ERROR"`,
	}
	for status, want := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ContextWithTraceID(req.Context(), "t-1")))

		line := buf.String()
		if !strings.Contains(line, want) || !strings.Contains(line, `"trace_id":"t-1"`) {
			t.Fatalf("status %d log = %s", status, line)
		}
	}
}

func TestNewLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{Profile: config.ProfileDev, Service: config.ServiceConfig{Name: "xwines-api"}}
	cfg.Observability.LogJSON = true
	cfg.Observability.LogLevel = slog.LevelInfo
	logger := NewLogger(cfg, &buf)
	logger.Info("translator ready", slog.String("api_key", "sk-live"), slog.String("provider", "gemini"))

	line := buf.String()
	if strings.Contains(line, "sk-live") || !strings.Contains(line, `"api_key":"[redacted]"`) {
		t.Fatalf("log line = %s", line)
	}
	if !strings.Contains(line, `"service":"xwines-api"`) {
		t.Fatalf("log line = %s", line)
	}
}

func TestRouteLabelUsesMuxPattern(t *testing.T) {
	mux := http.NewServeMux()
	var seen *http.Request
	mux.HandleFunc("GET /v1/tables/{table}/rows", func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/tables/Wine/rows", nil)
	MetricsMiddleware(mux).ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil {
		t.Fatal("handler was not called")
	}
	if got := routeLabel(req); got != "GET /v1/tables/{table}/rows" {
		t.Fatalf("routeLabel() = %q", got)
	}
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Fatalf("routeLabel() = %q", got)
	}
}
