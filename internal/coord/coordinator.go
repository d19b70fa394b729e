// Package coord imports RSS sources into the local store in the background.
package coord

import (
	"context"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/fetch"
	"github.com/abelbrown/feedview/internal/logging"
	"github.com/abelbrown/feedview/internal/otel"
	"github.com/abelbrown/feedview/internal/ui"
)

// fetchTimeout is the timeout for each individual fetch.
const fetchTimeout = 30 * time.Second

// maxConcurrentFetches limits parallel fetch operations.
const maxConcurrentFetches = 5

// fetcher interface for dependency injection (testing).
type fetcher interface {
	Fetch(ctx context.Context, src fetch.Source) ([]feed.Item, error)
}

// saver is the write side of the item store.
type saver interface {
	Save(ctx context.Context, items []feed.Item) (int, error)
}

// Result reports one source of an import run.
type Result struct {
	Source   string
	Fetched  int
	NewItems int
	Err      error
}

// Coordinator fetches sources and saves their posts.
// Context cancellation is the only stop mechanism.
type Coordinator struct {
	store   saver
	fetcher fetcher
	sources []fetch.Source // copied at construction, never modified
	events  *otel.Logger
	wg      sync.WaitGroup
}

// NewCoordinator creates a Coordinator. events may be nil.
func NewCoordinator(s saver, f fetcher, sources []fetch.Source, events *otel.Logger) *Coordinator {
	sourcesCopy := make([]fetch.Source, len(sources))
	copy(sourcesCopy, sources)

	return &Coordinator{
		store:   s,
		fetcher: f,
		sources: sourcesCopy,
		events:  events,
	}
}

// Start imports immediately and then every interval until ctx is done.
// A non-positive interval imports once.
func (c *Coordinator) Start(ctx context.Context, program *tea.Program, interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.ImportAll(ctx, program)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ImportAll(ctx, program)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// ImportAll fetches every source in parallel and saves the results. Each
// source sends a ui.ImportComplete to program when it finishes; program may
// be nil. Results are sorted by source name.
func (c *Coordinator) ImportAll(ctx context.Context, program *tea.Program) []Result {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []Result
	)
	g.SetLimit(maxConcurrentFetches)

	for _, src := range c.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := c.importSource(ctx, src, program)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil // errors are reported per source
		})
	}

	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	return results
}

func (c *Coordinator) importSource(ctx context.Context, src fetch.Source, program *tea.Program) Result {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindImportStart, Comp: "coord", Source: src.Name})
	began := time.Now()

	r := Result{Source: src.Name}
	items, err := c.fetcher.Fetch(fetchCtx, src)
	if err == nil && len(items) > 0 {
		r.Fetched = len(items)
		r.NewItems, err = c.store.Save(ctx, items)
	}
	r.Err = err

	if err != nil {
		logging.Warn("import failed", "source", src.Name, "err", err)
		c.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindImportError, Comp: "coord", Source: src.Name, Dur: time.Since(began), Err: err.Error()})
	} else {
		logging.Info("import complete", "source", src.Name, "fetched", r.Fetched, "new", r.NewItems)
		c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindImportComplete, Comp: "coord", Source: src.Name, Dur: time.Since(began), Count: r.NewItems, Total: r.Fetched})
	}

	if program != nil {
		program.Send(ui.ImportComplete{
			Source:   src.Name,
			NewItems: r.NewItems,
			Err:      r.Err,
		})
	}
	return r
}
