package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/abelbrown/feedview/internal/app"
	"github.com/abelbrown/feedview/internal/feed"
)

// runPage drives the loader headlessly: each completion is printed and the
// next page requested until the feed is exhausted or -pages is reached.
func runPage() {
	fs := flag.NewFlagSet("page", flag.ExitOnError)
	pages := fs.Int("pages", 3, "Maximum number of pages to load (0 = until exhausted)")
	size := fs.Int("size", 0, "Page size (default from config)")
	refresh := fs.Bool("refresh", false, "Reset after the last page and load page 1 again")
	quiet := fs.Bool("q", false, "Print page summaries only")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	if *size > 0 {
		cfg.Feed.PageSize = *size
	}
	b := openBackend(cfg)
	defer b.Close()

	events, closeEvents := openEvents()
	defer closeEvents()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	type signalMsg struct {
		u   feed.Update
		err error
	}
	signals := make(chan signalMsg, 1)
	loader := app.NewLoader(cfg, b.Store, events, feed.WithListener(feed.ListenerFuncs{
		Changed: func(u feed.Update) { signals <- signalMsg{u: u} },
		Failed:  func(err error, u feed.Update) { signals <- signalMsg{u: u, err: err} },
	}))
	defer loader.Wait()
	defer loader.Close()

	wait := func() (signalMsg, bool) {
		select {
		case s := <-signals:
			return s, true
		case <-ctx.Done():
			return signalMsg{}, false
		}
	}

	start := time.Now()
	for n := 1; *pages == 0 || n <= *pages; n++ {
		err := loader.LoadNextPage(ctx)
		if errors.Is(err, feed.ErrExhausted) {
			fmt.Println("-- end of feed --")
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "load: %v\n", err)
			os.Exit(1)
		}
		s, ok := wait()
		if !ok {
			return
		}
		if s.err != nil {
			fmt.Fprintf(os.Stderr, "Oops... %s\n", feed.Description(s.err))
			os.Exit(1)
		}
		printPage(n, s.u, *quiet)
	}

	if *refresh {
		if err := loader.Reset(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "reset: %v\n", err)
			os.Exit(1)
		}
		s, ok := wait()
		if !ok {
			return
		}
		if s.err != nil {
			fmt.Fprintf(os.Stderr, "Oops... %s\n", feed.Description(s.err))
			os.Exit(1)
		}
		fmt.Println("-- refreshed --")
		printPage(1, s.u, *quiet)
	}

	st := loader.State()
	fmt.Printf("\n%d posts, next page %d, more=%t (%s)\n", len(st.Items), st.Page, st.HasMore, time.Since(start).Round(time.Millisecond))
}

func printPage(n int, u feed.Update, quiet bool) {
	st := u.State
	fmt.Printf("page %d: +%d posts (total %d)\n", n, u.Appended, len(st.Items))
	if quiet {
		return
	}
	for _, item := range st.Items[len(st.Items)-u.Appended:] {
		user := "?"
		if item.User != nil {
			user = item.User.Username
		}
		fmt.Printf("  %s  @%-15s %s\n", item.CreatedAt.Local().Format("2006-01-02 15:04"), truncate(user, 15), truncate(item.Caption, 60))
	}
}
