package nl2sql

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("nl2sql: model returned an empty response")

type Request struct {
	SchemaContext string   `json:"schema_context"`
	Question      string   `json:"question"`
	Instructions  []string `json:"instructions"`
	// Dialect names the SQL flavour the query must be written in.
	Dialect string `json:"dialect"`
}

// Result carries the candidate query as the provider returned it. The text
// may still be wrapped in a code fence; see StripCodeFence.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
