package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/xwines/xwines/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// redactedKeys are attribute names whose values never reach the log output.
var redactedKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"secret_key":    {},
	"dsn":           {},
}

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redact}
	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
		slog.String("store", cfg.Store.Driver),
	)
}

func redact(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(attr.Key)]; ok && attr.Value.String() != "" {
		return slog.String(attr.Key, "[redacted]")
	}
	return attr
}

// RequestLogger annotates base with the trace id carried by ctx.
func RequestLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return base.With(slog.String("trace_id", traceID))
	}
	return base
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(traceIDKey).(string)
	return value
}
