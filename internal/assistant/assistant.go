// Package assistant answers natural-language questions by asking a
// translator for a query and running it against the store.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xwines/xwines/internal/nl2sql"
	"github.com/xwines/xwines/internal/observability"
	"github.com/xwines/xwines/internal/store"
)

var (
	ErrNotConfigured = errors.New("assistant: translation credential is not configured")
	ErrEmptyQuestion = errors.New("assistant: question is required")
)

const DefaultAdvisoryRows = 500

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeEmpty     Outcome = "empty"
	OutcomeOversized Outcome = "oversized"
)

// ServiceError wraps a failed translator call. It is reported as is and never
// retried.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return "translation service: " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// QueryError is a generated query that the store refused or failed to run.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

var errNotReadOnly = errors.New("only read-only SELECT/WITH queries are allowed")

type Answer struct {
	Question string      `json:"question"`
	SQL      string      `json:"sql"`
	Columns  []string    `json:"columns"`
	Rows     []store.Row `json:"rows"`
	RowCount int         `json:"row_count"`
	Outcome  Outcome     `json:"outcome"`
	Warning  string      `json:"warning,omitempty"`
	Provider string      `json:"provider,omitempty"`
	Model    string      `json:"model,omitempty"`
}

type Options struct {
	// Credential is checked before any translator call; empty or
	// placeholder values mean the assistant is not configured.
	Credential   string
	Translator   nl2sql.Translator
	Schema       *nl2sql.SchemaContext
	Instructions []string
	AdvisoryRows int
	// RequireSelect rejects generated text that is not a SELECT or WITH
	// statement. Off by default: generated SQL runs unsandboxed.
	RequireSelect bool
	Logger        *slog.Logger
}

type Service struct {
	store         store.Store
	translator    nl2sql.Translator
	schema        *nl2sql.SchemaContext
	credential    string
	instructions  []string
	advisoryRows  int
	requireSelect bool
	logger        *slog.Logger
}

func New(st store.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if opts.Schema == nil {
		opts.Schema = nl2sql.NewSchemaContext(st, nil, opts.Logger)
	}
	if opts.Instructions == nil {
		opts.Instructions = nl2sql.DefaultInstructions()
	}
	if opts.AdvisoryRows <= 0 {
		opts.AdvisoryRows = DefaultAdvisoryRows
	}
	return &Service{
		store:         st,
		translator:    opts.Translator,
		schema:        opts.Schema,
		credential:    opts.Credential,
		instructions:  opts.Instructions,
		advisoryRows:  opts.AdvisoryRows,
		requireSelect: opts.RequireSelect,
		logger:        opts.Logger,
	}
}

func (s *Service) Configured() bool {
	return s.translator != nil && nl2sql.CredentialConfigured(s.credential)
}

// SchemaContext exposes the cached context text sent with every question.
func (s *Service) SchemaContext(ctx context.Context) string {
	return s.schema.Text(ctx)
}

// Ask translates question into SQL, runs it and classifies the outcome. On a
// QueryError the returned Answer still carries the generated SQL.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if !s.Configured() {
		observability.IncrementAssistantOutcome("not_configured")
		return Answer{}, ErrNotConfigured
	}

	result, err := s.translator.Translate(ctx, nl2sql.Request{
		SchemaContext: s.schema.Text(ctx),
		Question:      question,
		Instructions:  s.instructions,
		Dialect:       dialectTitle(s.store.Dialect()),
	})
	if err != nil {
		observability.IncrementAssistantOutcome("service_error")
		return Answer{}, &ServiceError{Err: err}
	}
	answer := Answer{
		Question: question,
		SQL:      nl2sql.StripCodeFence(result.Text),
		Provider: result.Provider,
		Model:    result.Model,
	}
	if answer.SQL == "" {
		observability.IncrementAssistantOutcome("service_error")
		return Answer{}, &ServiceError{Err: nl2sql.ErrEmptyResponse}
	}
	if s.requireSelect && !isReadOnlySQL(answer.SQL) {
		observability.IncrementAssistantOutcome("query_error")
		return answer, &QueryError{SQL: answer.SQL, Err: errNotReadOnly}
	}

	rows, err := s.store.Query(ctx, answer.SQL)
	if err != nil {
		observability.IncrementAssistantOutcome("query_error")
		s.logger.InfoContext(ctx, "generated query failed", slog.String("sql", answer.SQL), slog.String("error", err.Error()))
		return answer, &QueryError{SQL: answer.SQL, Err: err}
	}
	answer.Columns = rows.Columns
	answer.Rows = rows.Rows
	answer.RowCount = rows.Len()

	switch {
	case answer.RowCount == 0:
		answer.Outcome = OutcomeEmpty
	case answer.RowCount > s.advisoryRows:
		answer.Outcome = OutcomeOversized
		answer.Warning = fmt.Sprintf("query returned %d rows, more than the advised %d; consider narrowing the question", answer.RowCount, s.advisoryRows)
	default:
		answer.Outcome = OutcomeSuccess
	}
	observability.IncrementAssistantOutcome(string(answer.Outcome))
	return answer, nil
}

func isReadOnlySQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

func dialectTitle(d store.Dialect) string {
	switch d.Name {
	case store.DuckDB.Name:
		return "DuckDB"
	case store.Postgres.Name:
		return "PostgreSQL"
	default:
		return "SQLite"
	}
}
