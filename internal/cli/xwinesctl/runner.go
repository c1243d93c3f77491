// Package xwinesctl is the command-line client of the xwines API.
package xwinesctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 60 * time.Second
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type request struct {
	method string
	path   string
	body   []byte
	// field, when set, prints that string field of the response verbatim.
	field string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("xwinesctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, DefaultBaseURL), "xwines API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, DefaultTimeout), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	req, err := buildRequest(strings.TrimSpace(fs.Arg(0)), fs.Args()[1:], stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if req.field != "" {
		var payload map[string]any
		if err := json.Unmarshal(responseBody, &payload); err == nil {
			if text, ok := payload[req.field].(string); ok {
				_, _ = fmt.Fprintln(stdout, text)
				return 0
			}
		}
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, stderr io.Writer) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "tables":
		return request{method: http.MethodGet, path: "/v1/tables"}, nil
	case "reports":
		return request{method: http.MethodGet, path: "/v1/reports"}, nil
	case "schema":
		return request{method: http.MethodGet, path: "/v1/assistant/schema", field: "schema_context"}, nil
	case "rows":
		sub := flag.NewFlagSet("rows", flag.ContinueOnError)
		sub.SetOutput(stderr)
		page := sub.Int("page", 1, "1-based page number")
		pageSize := sub.Int("page-size", 0, "rows per page (server default when 0)")
		search := sub.String("q", "", "case-insensitive search term")
		positional, err := parseInterspersed(sub, args)
		if err != nil {
			return request{}, err
		}
		if len(positional) != 1 {
			return request{}, fmt.Errorf("rows requires exactly one table name")
		}
		query := url.Values{}
		query.Set("page", strconv.Itoa(*page))
		if *pageSize > 0 {
			query.Set("page_size", strconv.Itoa(*pageSize))
		}
		if strings.TrimSpace(*search) != "" {
			query.Set("q", *search)
		}
		return request{method: http.MethodGet, path: "/v1/tables/" + url.PathEscape(positional[0]) + "/rows?" + query.Encode()}, nil
	case "show":
		if len(args) != 2 {
			return request{}, fmt.Errorf("show requires a table name and a key")
		}
		return request{method: http.MethodGet, path: "/v1/tables/" + url.PathEscape(args[0]) + "/rows/" + url.PathEscape(args[1])}, nil
	case "report":
		if len(args) != 1 {
			return request{}, fmt.Errorf("report requires a report id")
		}
		return request{method: http.MethodGet, path: "/v1/reports/" + url.PathEscape(args[0])}, nil
	case "ask":
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return request{}, fmt.Errorf("ask requires a question")
		}
		body, err := json.Marshal(map[string]string{"question": question})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/assistant/ask", body: body}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

// parseInterspersed parses flags that may appear before or after positional
// arguments and returns the positional ones in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, apiKey string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: xwinesctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  tables                                 GET /v1/tables")
	_, _ = fmt.Fprintln(w, "  rows <table> [-page N] [-q term]       GET /v1/tables/{table}/rows")
	_, _ = fmt.Fprintln(w, "  show <table> <key>                     GET /v1/tables/{table}/rows/{key}")
	_, _ = fmt.Fprintln(w, "  reports                                GET /v1/reports")
	_, _ = fmt.Fprintln(w, "  report <id>                            GET /v1/reports/{id}")
	_, _ = fmt.Fprintln(w, "  schema                                 GET /v1/assistant/schema")
	_, _ = fmt.Fprintln(w, "  ask <question...>                      POST /v1/assistant/ask")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
