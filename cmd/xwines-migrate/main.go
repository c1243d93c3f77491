package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xwines/xwines/internal/config"
	"github.com/xwines/xwines/internal/migrations"
	"github.com/xwines/xwines/internal/store/sqldb"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	if err := run(*direction, *steps, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "xwines-migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(direction string, steps int, out io.Writer) error {
	cfg, err := config.LoadFromEnv("xwines-migrate")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, dialect, err := sqldb.Open(ctx, sqldb.DBConfig{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner(dialect)
	switch direction {
	case "up":
		n, err := runner.Up(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("up after %d migration(s): %w", n, err)
		}
		_, _ = fmt.Fprintf(out, "applied %d migration(s) on %s\n", n, dialect.Name)
	case "down":
		n, err := runner.Down(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("down after %d migration(s): %w", n, err)
		}
		_, _ = fmt.Fprintf(out, "rolled back %d migration(s) on %s\n", n, dialect.Name)
	case "status":
		states, err := runner.Status(ctx, db)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		for _, state := range states {
			mark := "pending"
			if state.Applied {
				mark = "applied"
			}
			_, _ = fmt.Fprintf(out, "%06d %-24s %s\n", state.Version, state.Name, mark)
		}
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}
	return nil
}
