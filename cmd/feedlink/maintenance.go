package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nerrad567/feedlink/internal/audit"
	"github.com/nerrad567/feedlink/internal/infrastructure/config"
	"github.com/nerrad567/feedlink/internal/infrastructure/database"
	"github.com/nerrad567/feedlink/migrations"
)

// errJournalDisabled is returned by maintenance commands when the
// configuration has no event journal.
var errJournalDisabled = errors.New("event journal is disabled (database.enabled: false)")

// options holds the command-line flags.
type options struct {
	events       int
	eventsAction string
	eventsFeed   string
	migrateDown  bool
}

// maintenance reports whether a one-shot command was requested instead of
// the scheduling loop.
func (o options) maintenance() bool {
	return o.events > 0 || o.migrateDown
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("feedlink", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.IntVar(&opts.events, "events", 0, "Print the N most recent journal events as JSON lines and exit")
	fs.StringVar(&opts.eventsAction, "events-action", "", "Only print journal events with this action")
	fs.StringVar(&opts.eventsFeed, "events-feed", "", "Only print journal events for this feed")
	fs.BoolVar(&opts.migrateDown, "migrate-down", false, "Roll back the latest journal migration and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: feedlink [-events N [-events-action A] [-events-feed F]] [-migrate-down]\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.events < 0 {
		err := fmt.Errorf("-events must not be negative, got %d", opts.events)
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return options{}, err
	}
	return opts, nil
}

// runMaintenance executes a one-shot journal command against the
// configured database.
func runMaintenance(ctx context.Context, opts options, w io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Database.Enabled {
		return errJournalDisabled
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Process exits right after

	if opts.migrateDown {
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintf(w, "rolled back latest migration in %s\n", db.Path())
		return nil
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return printEvents(ctx, audit.NewSQLiteRepository(db.DB), audit.Filter{
		Action: opts.eventsAction,
		Feed:   opts.eventsFeed,
		Limit:  opts.events,
	}, w)
}

// printEvents writes one JSON object per event, most recent first.
func printEvents(ctx context.Context, repo audit.Repository, filter audit.Filter, w io.Writer) error {
	res, err := repo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	enc := json.NewEncoder(w)
	for i := range res.Events {
		if err := enc.Encode(&res.Events[i]); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
	}
	return nil
}
