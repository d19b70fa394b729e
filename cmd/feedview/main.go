// Command feedview is a terminal feed of posts with pull-to-refresh and
// infinite scroll.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/feedview/internal/app"
	"github.com/abelbrown/feedview/internal/config"
	"github.com/abelbrown/feedview/internal/coord"
	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/fetch"
	"github.com/abelbrown/feedview/internal/logging"
	"github.com/abelbrown/feedview/internal/otel"
	"github.com/abelbrown/feedview/internal/ui"
)

func main() {
	importFeeds := flag.Bool("import", false, "Import RSS sources into the local database in the background")
	importEvery := flag.Duration("import-every", 0, "Re-import interval with -import (0 imports once)")
	keysFile := flag.String("keys", "", "Shell file with PARSE_* exports")
	flag.Parse()

	if err := run(*importFeeds, *importEvery, *keysFile); err != nil {
		fmt.Fprintf(os.Stderr, "feedview: %v\n", err)
		os.Exit(1)
	}
}

func run(importFeeds bool, importEvery time.Duration, keysFile string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "feedview: logging disabled: %v\n", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if keysFile != "" {
		if err := cfg.LoadKeysFromFile(keysFile); err != nil {
			return fmt.Errorf("load keys: %w", err)
		}
	}

	backend, err := app.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	events, closeEvents, err := app.OpenEvents(app.EventsPath())
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.NewNullLogger()
		closeEvents = events.Close
	}
	defer closeEvents()
	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events.SetRingBuffer(ring)
	events.Info(otel.KindStartup, "main", backend.Name)

	// The program is created before the loader so the listener can send to it.
	var program *tea.Program
	loader := app.NewLoader(cfg, backend.Store, events,
		feed.WithListener(ui.NewListener(programSender{&program})))
	defer loader.Wait()
	defer loader.Close()

	model := ui.NewApp(ui.AppConfig{
		Pager:     loader,
		Context:   ctx,
		Threshold: cfg.Feed.ScrollThreshold,
		Title:     "feedview · " + backend.Name,
		Events:    events,
		Ring:      ring,
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	if importFeeds {
		if backend.Local == nil {
			logging.Warn("-import needs the sqlite backend, skipping")
		} else {
			c := coord.NewCoordinator(backend.Local, fetch.NewFetcher(cfg.Feed.FetchTimeout()), cfg.Sources, events)
			c.Start(ctx, program, importEvery)
			defer c.Wait()
		}
	}

	logging.Info("starting UI", "backend", backend.Name, "page_size", cfg.Feed.PageSize)
	_, err = program.Run()
	cancel()
	if err != nil {
		events.Error(otel.KindError, "main", err)
		return fmt.Errorf("run UI: %w", err)
	}

	events.Info(otel.KindShutdown, "main", "")
	return nil
}

// programSender defers to the program once it exists. Signals that arrive
// before then are dropped; the App asks for the first page from Init, after
// the program is running.
type programSender struct {
	p **tea.Program
}

func (s programSender) Send(msg tea.Msg) {
	if *s.p != nil {
		(*s.p).Send(msg)
	}
}
