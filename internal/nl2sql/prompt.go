package nl2sql

import (
	"fmt"
	"strings"
)

// DefaultInstructions is the fixed rule set sent with every question.
func DefaultInstructions() []string {
	return []string{
		"Output ONLY raw SQL. No markdown.",
		"MANDATORY: Select the Primary Key FIRST (e.g. WineID), THEN select meaningful columns.",
		"Use LIKE for text searches (case-insensitive).",
		"If searching for food pairings, join 'Wine' with 'Harmonize'.",
		"If searching for grapes, join 'Wine' with 'Grapes' (column is 'Grape').",
		"If searching for years, join 'Wine' with 'Vintages' (column is 'Vintage').",
		"LIMIT results to 50 unless specified otherwise.",
		"FORMAT THE SQL: Use newlines and indentation for readability (SELECT on one line, FROM on the next, WHERE on the next). Do not write single-line SQL.",
	}
}

const systemPrompt = "Role: Expert SQL Data Analyst. You answer questions about a wine database with a single SQL query."

// BuildPrompt renders the user prompt shared by every provider.
func BuildPrompt(req Request) string {
	dialect := strings.TrimSpace(req.Dialect)
	if dialect == "" {
		dialect = "SQLite"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dialect: %s.\n\n", dialect)
	b.WriteString("Database Schema & Data Samples:\n")
	b.WriteString(req.SchemaContext)
	fmt.Fprintf(&b, "\n\nGoal: Generate a SQL query to answer: %q\n", strings.TrimSpace(req.Question))
	if len(req.Instructions) > 0 {
		b.WriteString("\nStrict Rules:\n")
		for i, rule := range req.Instructions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
		}
	}
	return b.String()
}

// StripCodeFence removes a surrounding markdown code fence, with or without a
// language tag, and trims the result. Any single-word first line is taken as
// the tag unless it opens a statement.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		if isFenceTag(trimmed[:newline]) {
			trimmed = trimmed[newline+1:]
		}
	} else {
		trimmed = strings.TrimPrefix(trimmed, "sql")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func isFenceTag(line string) bool {
	tag := strings.TrimSpace(line)
	if tag == "" {
		return true
	}
	if strings.ContainsAny(tag, " \t") {
		return false
	}
	switch strings.ToUpper(tag) {
	case "SELECT", "WITH":
		return false
	}
	return true
}
