package xwinesctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recorded struct {
	method, path, rawQuery, apiKey string
	body                           []byte
}

func newServer(t *testing.T, response string) (*httptest.Server, *recorded) {
	t.Helper()
	got := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.rawQuery = r.URL.RawQuery
		got.apiKey = r.Header.Get("X-API-Key")
		got.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunTablesCommand(t *testing.T) {
	srv, got := newServer(t, `{"tables":[{"table_name":"Wine"}]}`)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"tables",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodGet || got.path != "/v1/tables" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.apiKey != "k1" {
		t.Fatalf("api key = %q", got.apiKey)
	}
	if !strings.Contains(stdout.String(), "\n  \"tables\"") {
		t.Fatalf("expected pretty JSON, got %s", stdout.String())
	}
}

func TestRunRowsCommandAcceptsFlagsAfterTable(t *testing.T) {
	srv, got := newServer(t, `{"rows":[]}`)

	code := Run(context.Background(), []string{"-base-url", srv.URL, "rows", "Wine", "-page", "2", "-q", "douro tinto"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/tables/Wine/rows" || got.rawQuery != "page=2&q=douro+tinto" {
		t.Fatalf("request = %s?%s", got.path, got.rawQuery)
	}

	code = Run(context.Background(), []string{"-base-url", srv.URL, "rows", "-page-size", "10", "Grapes"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/tables/Grapes/rows" || got.rawQuery != "page=1&page_size=10" {
		t.Fatalf("request = %s?%s", got.path, got.rawQuery)
	}
}

func TestRunShowAndReportCommands(t *testing.T) {
	srv, got := newServer(t, `{}`)

	if code := Run(context.Background(), []string{"-base-url", srv.URL, "show", "Countries", "P T"}, Options{}); code != 0 {
		t.Fatalf("show exit code = %d", code)
	}
	if got.path != "/v1/tables/Countries/rows/P%20T" {
		t.Fatalf("show path = %s", got.path)
	}

	if code := Run(context.Background(), []string{"-base-url", srv.URL, "report", "P11"}, Options{}); code != 0 {
		t.Fatalf("report exit code = %d", code)
	}
	if got.path != "/v1/reports/P11" {
		t.Fatalf("report path = %s", got.path)
	}
}

func TestRunAskCommandPostsQuestion(t *testing.T) {
	srv, got := newServer(t, `{"sql":"SELECT 1","rows":[]}`)

	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "which", "wines", "sparkle?"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/assistant/ask" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["question"] != "which wines sparkle?" {
		t.Fatalf("question = %q", payload["question"])
	}
}

func TestRunSchemaPrintsContextText(t *testing.T) {
	srv, _ := newServer(t, `{"configured":true,"schema_context":"CREATE TABLE \"Wine\" (...);"}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "schema"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if stdout.String() != "CREATE TABLE \"Wine\" (...);\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error_code":"FORBIDDEN"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "hi"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 403") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunRejectsBadUsage(t *testing.T) {
	cases := [][]string{
		{"unknown"},
		{},
		{"rows"},
		{"show", "Wine"},
		{"report"},
		{"ask", "  "},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		if code := Run(context.Background(), args, Options{Stderr: &stderr}); code != 2 {
			t.Fatalf("Run(%q) exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("Run(%q) expected usage output", args)
		}
	}
}
