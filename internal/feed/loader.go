package feed

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/feedview/internal/otel"
)

// DefaultPageSize is the number of posts requested per page.
const DefaultPageSize = 20

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 30 * time.Second

// Option configures a Loader.
type Option func(*Loader)

// WithPageSize sets the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// WithListener attaches the presentation layer at construction.
func WithListener(lst Listener) Option {
	return func(l *Loader) { l.listener = lst }
}

// WithDispatcher sets how completion signals reach the listener. The
// default calls them inline on the fetch goroutine, after the loader's
// state is settled and its lock released.
func WithDispatcher(dispatch func(func())) Option {
	return func(l *Loader) {
		if dispatch != nil {
			l.dispatch = dispatch
		}
	}
}

// WithTimeout bounds each fetch. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithEvents records loader activity to an event log.
func WithEvents(events *otel.Logger) Option {
	return func(l *Loader) { l.events = events }
}

// WithStopWhenExhausted controls whether LoadNextPage refuses to fetch once a
// short page has been seen. Any page with fewer than the page size items
// counts as the end of the feed, including a partial page from a store that
// returns them mid-feed; only Reset resumes paging. Enabled by default.
func WithStopWhenExhausted(stop bool) Option {
	return func(l *Loader) { l.stopWhenExhausted = stop }
}

// Loader maintains the in-memory feed for one screen.
type Loader struct {
	store             Store
	pageSize          int
	timeout           time.Duration
	dispatch          func(func())
	events            *otel.Logger
	stopWhenExhausted bool

	mu           sync.Mutex
	items        []Item
	page         int
	loading      bool
	hasMore      bool
	refreshing   bool
	pendingReset bool            // a Reset arrived while a fetch was in flight
	resetCtx     context.Context // context of the deferred Reset
	closed       bool
	listener     Listener

	wg sync.WaitGroup
}

// New creates a Loader positioned at page 1 with no items.
func New(store Store, opts ...Option) *Loader {
	l := &Loader{
		store:             store,
		pageSize:          DefaultPageSize,
		timeout:           DefaultTimeout,
		dispatch:          func(fn func()) { fn() },
		stopWhenExhausted: true,
		page:              1,
		hasMore:           true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadNextPage requests the next page in the background. It returns nil when
// a request was started, or one of ErrBusy, ErrExhausted, ErrClosed when it
// was rejected. Results are delivered to the listener.
func (l *Loader) LoadNextPage(ctx context.Context) error {
	l.mu.Lock()
	if err := l.rejectLocked(); err != nil {
		page := l.page
		l.mu.Unlock()
		l.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageRejected, Comp: "loader", Page: page, Msg: err.Error()})
		return err
	}
	page := l.page
	l.loading = true
	l.mu.Unlock()

	l.start(ctx, page)
	return nil
}

// Reset clears the feed back to page 1 and loads it again. The completion
// of the resulting fetch carries Update.Refreshed.
//
// When a fetch is already in flight, its result is discarded on arrival and
// the reset's fetch is issued from that completion instead.
func (l *Loader) Reset(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.page = 1
	l.items = nil
	l.hasMore = true
	l.refreshing = true
	if l.loading {
		l.pendingReset = true
		l.resetCtx = ctx
		l.mu.Unlock()
		l.events.Info(otel.KindRefreshStart, "loader", "deferred until in-flight page lands")
		return nil
	}
	l.loading = true
	l.mu.Unlock()

	l.events.Info(otel.KindRefreshStart, "loader", "")
	l.start(ctx, 1)
	return nil
}

// State returns a snapshot of the feed.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// SetListener replaces the presentation layer. Nil detaches it.
func (l *Loader) SetListener(lst Listener) {
	l.mu.Lock()
	l.listener = lst
	l.mu.Unlock()
}

// Detach removes the listener. In-flight fetches still update state but
// no longer signal anyone.
func (l *Loader) Detach() {
	l.SetListener(nil)
}

// Close detaches the listener and rejects further loads. It does not
// cancel a fetch already in flight; use Wait to block until it lands.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.listener = nil
	l.mu.Unlock()
}

// Wait blocks until every fetch started by the loader has completed.
func (l *Loader) Wait() {
	l.wg.Wait()
}

func (l *Loader) rejectLocked() error {
	switch {
	case l.closed:
		return ErrClosed
	case l.loading:
		return ErrBusy
	case !l.hasMore && l.stopWhenExhausted:
		return ErrExhausted
	}
	return nil
}

func (l *Loader) stateLocked() State {
	var items []Item
	if len(l.items) > 0 {
		items = make([]Item, len(l.items))
		copy(items, l.items)
	}
	return State{
		Items:      items,
		Page:       l.page,
		PageSize:   l.pageSize,
		Loading:    l.loading,
		HasMore:    l.hasMore,
		Refreshing: l.refreshing,
	}
}

// start fetches page on a new goroutine. Caller must have set l.loading.
func (l *Loader) start(ctx context.Context, page int) {
	q := PageQuery(page, l.pageSize)
	l.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPageRequest, Comp: "loader", Page: page, Skip: q.Skip})

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		fetchCtx := ctx
		if l.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}

		began := time.Now()
		items, err := l.store.Fetch(fetchCtx, q)
		l.complete(page, items, err, time.Since(began))
	}()
}

// complete applies a fetch result and signals the listener.
func (l *Loader) complete(page int, items []Item, err error, dur time.Duration) {
	l.mu.Lock()
	l.loading = false

	if l.pendingReset {
		resetCtx := l.resetCtx
		l.pendingReset = false
		l.resetCtx = nil
		closed := l.closed
		if closed {
			l.refreshing = false
		} else {
			l.loading = true
		}
		l.mu.Unlock()
		l.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPageStale, Comp: "loader", Page: page, Count: len(items)})
		if !closed {
			l.start(resetCtx, 1)
		}
		return
	}

	refreshed := l.refreshing
	l.refreshing = false

	var appended int
	if err == nil {
		if len(items) > 0 {
			l.items = append(l.items, items...)
			l.page++
			appended = len(items)
		}
		if len(items) < l.pageSize {
			l.hasMore = false
		}
	}
	u := Update{State: l.stateLocked(), Refreshed: refreshed, Appended: appended}
	l.mu.Unlock()

	l.record(page, u, err, dur)

	if err != nil {
		fe := &FetchError{Page: page, Err: err}
		l.dispatch(func() {
			if lst := l.currentListener(); lst != nil {
				lst.FeedFailed(fe, u)
			}
		})
		return
	}
	l.dispatch(func() {
		if lst := l.currentListener(); lst != nil {
			lst.FeedChanged(u)
		}
	})
}

// currentListener is read at delivery time so that a Detach between
// completion and dispatch is honored.
func (l *Loader) currentListener() Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listener
}

func (l *Loader) record(page int, u Update, err error, dur time.Duration) {
	if l.events == nil {
		return
	}
	ev := otel.Event{Comp: "loader", Page: page, Dur: dur, Count: u.Appended, Total: len(u.State.Items)}
	switch {
	case err != nil:
		ev.Level, ev.Kind, ev.Err = otel.LevelError, otel.KindPageError, err.Error()
	case u.Appended == 0:
		ev.Level, ev.Kind = otel.LevelInfo, otel.KindPageEmpty
	default:
		ev.Level, ev.Kind = otel.LevelInfo, otel.KindPageLoaded
	}
	l.events.Emit(ev)
	if u.Refreshed {
		l.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRefreshComplete, Comp: "loader", Total: len(u.State.Items), Err: ev.Err})
	}
}
