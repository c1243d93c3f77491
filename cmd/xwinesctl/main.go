package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xwines/xwines/internal/cli/xwinesctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("XWINES_CLI_TIMEOUT")), xwinesctl.DefaultTimeout)
	options := xwinesctl.Options{
		BaseURL: envOr("XWINES_API_URL", xwinesctl.DefaultBaseURL),
		APIKey:  strings.TrimSpace(os.Getenv("XWINES_API_KEY")),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := xwinesctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid XWINES_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
