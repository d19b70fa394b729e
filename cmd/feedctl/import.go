package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/abelbrown/feedview/internal/coord"
	"github.com/abelbrown/feedview/internal/fetch"
)

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	url := fs.String("url", "", "Import a single feed URL instead of the configured sources")
	name := fs.String("name", "", "Source name for -url (defaults to the URL)")
	timeout := fs.Duration("timeout", 30*time.Second, "HTTP timeout per source")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	b := openBackend(cfg)
	defer b.Close()
	requireLocal(b, "import")

	sources := cfg.Sources
	if *url != "" {
		n := *name
		if n == "" {
			n = *url
		}
		sources = []fetch.Source{{Name: n, URL: *url}}
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "no sources configured")
		os.Exit(1)
	}

	events, closeEvents := openEvents()
	defer closeEvents()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := coord.NewCoordinator(b.Local, fetch.NewFetcher(*timeout), sources, events)
	start := time.Now()
	results := c.ImportAll(ctx, nil)

	failed := 0
	total := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("  %-35s ERROR %v\n", truncate(r.Source, 35), r.Err)
			continue
		}
		total += r.NewItems
		fmt.Printf("  %-35s %4d fetched %4d new\n", truncate(r.Source, 35), r.Fetched, r.NewItems)
	}
	fmt.Printf("\nImported %d new posts from %d sources in %s (%d failed)\n",
		total, len(results)-failed, time.Since(start).Round(time.Millisecond), failed)
	if failed == len(results) {
		os.Exit(1)
	}
}
