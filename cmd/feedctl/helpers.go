package main

import (
	"fmt"
	"log"
	"os"

	"github.com/abelbrown/feedview/internal/app"
	"github.com/abelbrown/feedview/internal/config"
	"github.com/abelbrown/feedview/internal/otel"
)

// loadConfig loads ~/.feedview/config.json or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openBackend opens the configured store or fatals.
func openBackend(cfg *config.Config) *app.Backend {
	b, err := app.OpenBackend(cfg)
	if err != nil {
		log.Fatalf("failed to open backend: %v", err)
	}
	return b
}

// requireLocal fatals unless the backend is the local database.
func requireLocal(b *app.Backend, cmd string) {
	if b.Local == nil {
		fmt.Fprintf(os.Stderr, "error: %s needs the sqlite backend (current: %s)\n", cmd, b.Name)
		fmt.Fprintln(os.Stderr, "  unset PARSE_SERVER_URL or set \"backend\": \"sqlite\" in ~/.feedview/config.json")
		os.Exit(1)
	}
}

// openEvents opens the shared event log, falling back to a null logger.
func openEvents() (*otel.Logger, func()) {
	events, closeFn, err := app.OpenEvents(app.EventsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		events = otel.NewNullLogger()
		return events, events.Close
	}
	return events, closeFn
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
