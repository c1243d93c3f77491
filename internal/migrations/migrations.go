// Package migrations applies the embedded wine schema scripts and records
// them in a bookkeeping table the browser never lists.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xwines/xwines/internal/store"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

// migrationTable carries the prefix the store hides from table listings.
const migrationTable = "xwines_schema_migrations"

var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

type Migration struct {
	Version int64
	Name    string
	up      string
	down    string
}

// State is one known migration and whether the database has it.
type State struct {
	Version int64
	Name    string
	Applied bool
}

type Runner struct {
	fsys    fs.FS
	dialect store.Dialect
}

// NewRunner returns a runner over the embedded wine schema scripts. The
// dialect decides the bind markers of the bookkeeping statements.
func NewRunner(dialect store.Dialect) *Runner {
	return &Runner{fsys: embeddedFS, dialect: dialect}
}

// Plan lists the known migrations in version order.
func (r *Runner) Plan() ([]Migration, error) {
	return loadScripts(r.fsys)
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]State, error) {
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(plan))
	for _, m := range plan {
		states = append(states, State{Version: m.Version, Name: m.Name, Applied: applied[m.Version]})
	}
	return states, nil
}

// Up applies pending migrations in ascending order; steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, m := range plan {
		if applied[m.Version] {
			continue
		}
		if steps > 0 && done >= steps {
			break
		}
		if err := r.step(ctx, db, m, true); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Down rolls back applied migrations newest first; steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := len(plan) - 1; i >= 0 && done < steps; i-- {
		if !applied[plan[i].Version] {
			continue
		}
		if err := r.step(ctx, db, plan[i], false); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// prepare loads the scripts, ensures the bookkeeping table and reads the
// applied set. A recorded version without a script is an error: the database
// is ahead of this binary.
func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]Migration, map[int64]bool, error) {
	plan, err := loadScripts(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	create := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, nil, fmt.Errorf("ensure migration table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable)
	if err != nil {
		return nil, nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scan version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read applied versions: %w", err)
	}

	known := make(map[int64]bool, len(plan))
	for _, m := range plan {
		known[m.Version] = true
	}
	for version := range applied {
		if !known[version] {
			return nil, nil, fmt.Errorf("applied migration %d has no script", version)
		}
	}
	return plan, applied, nil
}

// step runs one script and its bookkeeping statement in a single transaction.
func (r *Runner) step(ctx context.Context, db *sql.DB, m Migration, up bool) error {
	script, verb := m.down, "roll back"
	record := `DELETE FROM ` + migrationTable + ` WHERE version = ` + r.dialect.Placeholder(1)
	args := []any{m.Version}
	if up {
		script, verb = m.up, "apply"
		record = `INSERT INTO ` + migrationTable + ` (version, name) VALUES (` + r.dialect.Placeholder(1) + `, ` + r.dialect.Placeholder(2) + `)`
		args = append(args, m.Name)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s migration %d: begin: %w", verb, m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("%s migration %d (%s): %w", verb, m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("%s migration %d: record: %w", verb, m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s migration %d: commit: %w", verb, m.Version, err)
	}
	return nil
}

// loadScripts pairs NNNNNN_name.up.sql with NNNNNN_name.down.sql. Both
// halves are required.
func loadScripts(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*Migration{}
	for _, entry := range entries {
		match := scriptNamePattern.FindStringSubmatch(path.Base(entry.Name()))
		if entry.IsDir() || match == nil {
			continue
		}
		version, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version of %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		} else if m.Name != match[2] {
			return nil, fmt.Errorf("migration %d has scripts named %q and %q", version, m.Name, match[2])
		}
		if match[3] == "up" {
			m.up = string(body)
		} else {
			m.down = string(body)
		}
	}

	plan := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case strings.TrimSpace(m.up) == "":
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		case strings.TrimSpace(m.down) == "":
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		plan = append(plan, *m)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Version < plan[j].Version })
	return plan, nil
}

// splitStatements breaks a script on statement terminators and drops comment
// lines. Scripts are kept free of semicolons inside literals.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				lines = append(lines, line)
			}
		}
		if statement := strings.TrimSpace(strings.Join(lines, "\n")); statement != "" {
			out = append(out, statement)
		}
	}
	return out
}
