package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type result struct {
	items []Item
	err   error
}

// scriptedStore answers Fetch calls from a queue of results. When gate is
// set, each Fetch blocks until a value is sent on it.
type scriptedStore struct {
	mu          sync.Mutex
	results     []result
	queries     []Query
	inFlight    int
	maxInFlight int
	gate        chan struct{}
	started     chan Query
}

func newScriptedStore(results ...result) *scriptedStore {
	return &scriptedStore{results: results}
}

func (s *scriptedStore) Fetch(ctx context.Context, q Query) ([]Item, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	var r result
	if len(s.results) > 0 {
		r = s.results[0]
		s.results = s.results[1:]
	}
	gate, started := s.gate, s.started
	s.mu.Unlock()

	if started != nil {
		started <- q
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return r.items, r.err
}

func (s *scriptedStore) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.queries...)
}

type recorder struct {
	mu      sync.Mutex
	changed []Update
	failed  []error
	updates []Update
}

func (r *recorder) FeedChanged(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, u)
	r.updates = append(r.updates, u)
}

func (r *recorder) FeedFailed(err error, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	r.updates = append(r.updates, u)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed), len(r.failed)
}

func makePage(prefix string, n int) []Item {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Caption:   fmt.Sprintf("post %s/%d", prefix, i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
			User:      &User{ID: "u1", Username: "ada"},
		}
	}
	return items
}

// loadAndWait starts a page load and blocks until it has been applied.
func loadAndWait(t *testing.T, l *Loader) {
	t.Helper()
	if err := l.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("LoadNextPage: %v", err)
	}
	l.Wait()
}

func TestLoadNextPageAppendsPages(t *testing.T) {
	st := newScriptedStore(
		result{items: makePage("a", 20)},
		result{items: makePage("b", 20)},
		result{items: makePage("c", 5)},
	)
	rec := &recorder{}
	l := New(st, WithPageSize(20), WithListener(rec))

	for i := 0; i < 3; i++ {
		loadAndWait(t, l)
	}

	s := l.State()
	if len(s.Items) != 45 {
		t.Errorf("len(Items) = %d, want 45", len(s.Items))
	}
	if s.Page != 4 {
		t.Errorf("Page = %d, want 4", s.Page)
	}
	if s.Items[0].ID != "a-0" || s.Items[20].ID != "b-0" || s.Items[44].ID != "c-4" {
		t.Errorf("items not in fetch order: %s %s %s", s.Items[0].ID, s.Items[20].ID, s.Items[44].ID)
	}
	if s.HasMore {
		t.Error("HasMore should be false after a short page")
	}

	changed, failed := rec.counts()
	if changed != 3 || failed != 0 {
		t.Errorf("signals = %d changed, %d failed; want 3, 0", changed, failed)
	}

	qs := st.Queries()
	for i, q := range qs {
		if q.Skip != i*20 || q.Limit != 20 {
			t.Errorf("query %d skip/limit = %d/%d, want %d/20", i, q.Skip, q.Limit, i*20)
		}
		if len(q.OrderBy) != 1 || q.OrderBy[0] != (Order{Field: FieldCreatedAt, Desc: true}) {
			t.Errorf("query %d order = %v, want createdAt desc", i, q.OrderBy)
		}
		if !q.Includes(IncludeUser) {
			t.Errorf("query %d should include %q", i, IncludeUser)
		}
	}
}

func TestPageCountMatchesNonEmptyFetches(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
	}{
		{"single full page", []int{10}},
		{"several full pages", []int{10, 10, 10, 10}},
		{"full then partial", []int{10, 10, 3}},
		{"single partial", []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []result
			total := 0
			for i, n := range tt.sizes {
				results = append(results, result{items: makePage(fmt.Sprint(i), n)})
				total += n
			}
			l := New(newScriptedStore(results...), WithPageSize(10))
			for range tt.sizes {
				loadAndWait(t, l)
			}
			s := l.State()
			if len(s.Items) != total {
				t.Errorf("len(Items) = %d, want %d", len(s.Items), total)
			}
			if s.Page != 1+len(tt.sizes) {
				t.Errorf("Page = %d, want %d", s.Page, 1+len(tt.sizes))
			}
		})
	}
}

func TestEmptyPageSignalsWithoutMutation(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 20)}, result{})
	rec := &recorder{}
	l := New(st, WithPageSize(20), WithListener(rec))

	loadAndWait(t, l)
	loadAndWait(t, l)

	s := l.State()
	if len(s.Items) != 20 || s.Page != 2 {
		t.Errorf("state = %d items, page %d; want 20, 2", len(s.Items), s.Page)
	}
	changed, _ := rec.counts()
	if changed != 2 {
		t.Errorf("FeedChanged calls = %d, want 2", changed)
	}
	if last := rec.changed[1]; last.Appended != 0 {
		t.Errorf("Appended = %d, want 0", last.Appended)
	}
}

func TestFailedFetchLeavesStateUnchanged(t *testing.T) {
	offline := errors.New("The Internet connection appears to be offline.")
	st := newScriptedStore(
		result{items: makePage("a", 20)},
		result{err: offline},
		result{items: makePage("b", 20)},
	)
	rec := &recorder{}
	l := New(st, WithPageSize(20), WithListener(rec))

	loadAndWait(t, l)
	before := l.State()
	loadAndWait(t, l)
	after := l.State()

	if len(after.Items) != len(before.Items) || after.Page != before.Page {
		t.Errorf("failure mutated state: %d/%d -> %d/%d", len(before.Items), before.Page, len(after.Items), after.Page)
	}

	_, failed := rec.counts()
	if failed != 1 {
		t.Fatalf("FeedFailed calls = %d, want 1", failed)
	}
	var fe *FetchError
	if !errors.As(rec.failed[0], &fe) {
		t.Fatalf("error %T is not *FetchError", rec.failed[0])
	}
	if fe.Page != 2 {
		t.Errorf("FetchError.Page = %d, want 2", fe.Page)
	}
	if !errors.Is(rec.failed[0], offline) {
		t.Error("FetchError should unwrap to the store error")
	}
	if got := Description(rec.failed[0]); got != offline.Error() {
		t.Errorf("Description = %q", got)
	}

	// A retry asks for the same page.
	loadAndWait(t, l)
	qs := st.Queries()
	if qs[1].Skip != 20 || qs[2].Skip != 20 {
		t.Errorf("retry skip = %d, want 20 (failed skip %d)", qs[2].Skip, qs[1].Skip)
	}
	if l.State().Page != 3 {
		t.Errorf("Page after retry = %d, want 3", l.State().Page)
	}
}

func TestConcurrentLoadIsRejected(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 20)})
	st.gate = make(chan struct{})
	st.started = make(chan Query, 4)
	l := New(st, WithPageSize(20))

	ctx := context.Background()
	if err := l.LoadNextPage(ctx); err != nil {
		t.Fatalf("first LoadNextPage: %v", err)
	}
	<-st.started
	if !l.State().Loading {
		t.Error("Loading should be true while a fetch is in flight")
	}
	if err := l.LoadNextPage(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("second LoadNextPage = %v, want ErrBusy", err)
	}

	st.gate <- struct{}{}
	l.Wait()

	if n := len(st.Queries()); n != 1 {
		t.Errorf("store saw %d requests, want 1", n)
	}
	if st.maxInFlight != 1 {
		t.Errorf("max in flight = %d, want 1", st.maxInFlight)
	}
	if l.State().Loading {
		t.Error("Loading should be false after completion")
	}
}

func TestResetClearsBeforeFetching(t *testing.T) {
	var l *Loader
	var seen State
	pages := [][]Item{makePage("a", 20), makePage("b", 20), makePage("fresh", 20)}
	call := 0
	st := StoreFunc(func(ctx context.Context, q Query) ([]Item, error) {
		if call == 2 {
			seen = l.State()
		}
		items := pages[call]
		call++
		return items, nil
	})
	rec := &recorder{}
	l = New(st, WithPageSize(20), WithListener(rec))

	loadAndWait(t, l)
	loadAndWait(t, l)

	if err := l.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	l.Wait()

	if seen.Page != 1 || len(seen.Items) != 0 {
		t.Errorf("state during reset fetch = page %d, %d items; want page 1, empty", seen.Page, len(seen.Items))
	}
	if !seen.Refreshing {
		t.Error("Refreshing should be set while the reset fetch is in flight")
	}
	s := l.State()
	if s.Page != 2 || len(s.Items) != 20 || s.Items[0].ID != "fresh-0" {
		t.Errorf("after reset = page %d, %d items, first %q", s.Page, len(s.Items), s.Items[0].ID)
	}
	last := rec.changed[len(rec.changed)-1]
	if !last.Refreshed {
		t.Error("completion of a reset should carry Refreshed")
	}
	if rec.changed[0].Refreshed {
		t.Error("ordinary loads should not carry Refreshed")
	}
}

func TestResetRestoresExhaustedFeed(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 3)}, result{items: makePage("b", 3)})
	l := New(st, WithPageSize(20))

	loadAndWait(t, l)
	if err := l.LoadNextPage(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("LoadNextPage after short page = %v, want ErrExhausted", err)
	}
	if err := l.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	l.Wait()
	if n := len(st.Queries()); n != 2 {
		t.Errorf("store saw %d requests, want 2", n)
	}
}

func TestResetDuringFetchDiscardsStalePage(t *testing.T) {
	st := newScriptedStore(
		result{items: makePage("a", 20)},
		result{items: makePage("stale", 20)},
		result{items: makePage("fresh", 20)},
	)
	rec := &recorder{}
	l := New(st, WithPageSize(20), WithListener(rec))
	loadAndWait(t, l)

	st.gate = make(chan struct{})
	st.started = make(chan Query, 4)
	ctx := context.Background()

	if err := l.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage: %v", err)
	}
	<-st.started

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	s := l.State()
	if s.Page != 1 || len(s.Items) != 0 {
		t.Errorf("Reset should clear immediately, got page %d, %d items", s.Page, len(s.Items))
	}

	st.gate <- struct{}{} // stale page lands
	q := <-st.started     // reset fetch issued from that completion
	if q.Skip != 0 {
		t.Errorf("reset fetch skip = %d, want 0", q.Skip)
	}
	st.gate <- struct{}{}
	l.Wait()

	s = l.State()
	if len(s.Items) != 20 || s.Items[0].ID != "fresh-0" {
		t.Errorf("final state has %d items, first %q", len(s.Items), s.Items[0].ID)
	}
	if st.maxInFlight != 1 {
		t.Errorf("max in flight = %d, want 1", st.maxInFlight)
	}
	changed, _ := rec.counts()
	if changed != 2 {
		t.Errorf("FeedChanged calls = %d, want 2 (stale page must not signal)", changed)
	}
	if !rec.changed[1].Refreshed {
		t.Error("reset completion should carry Refreshed")
	}
}

func TestStopWhenExhaustedDisabled(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 5)}, result{})
	l := New(st, WithPageSize(20), WithStopWhenExhausted(false))

	loadAndWait(t, l)
	loadAndWait(t, l)
	if n := len(st.Queries()); n != 2 {
		t.Errorf("store saw %d requests, want 2", n)
	}
	if s := l.State(); s.Page != 2 || len(s.Items) != 5 {
		t.Errorf("state = page %d, %d items", s.Page, len(s.Items))
	}
}

func TestNoListenerIsNoop(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 20)}, result{err: errors.New("boom")})
	l := New(st)

	loadAndWait(t, l)
	loadAndWait(t, l)
	if len(l.State().Items) != 20 {
		t.Errorf("state should still be applied without a listener")
	}
}

func TestDetachSkipsSignals(t *testing.T) {
	st := newScriptedStore(result{items: makePage("a", 20)})
	st.gate = make(chan struct{})
	st.started = make(chan Query, 1)
	rec := &recorder{}
	l := New(st, WithListener(rec))

	if err := l.LoadNextPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-st.started
	l.Detach()
	st.gate <- struct{}{}
	l.Wait()

	if changed, failed := rec.counts(); changed+failed != 0 {
		t.Errorf("detached listener got %d signals", changed+failed)
	}
	if len(l.State().Items) != 20 {
		t.Error("in-flight fetch should still be applied after Detach")
	}
}

func TestCloseRejectsLoads(t *testing.T) {
	l := New(newScriptedStore())
	l.Close()

	if err := l.LoadNextPage(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadNextPage after Close = %v, want ErrClosed", err)
	}
	if err := l.Reset(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Reset after Close = %v, want ErrClosed", err)
	}
}

func TestCloseDuringDeferredResetStops(t *testing.T) {
	st := newScriptedStore(result{items: makePage("stale", 20)})
	st.gate = make(chan struct{})
	st.started = make(chan Query, 2)
	l := New(st)
	ctx := context.Background()

	if err := l.LoadNextPage(ctx); err != nil {
		t.Fatal(err)
	}
	<-st.started
	if err := l.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	l.Close()
	st.gate <- struct{}{}
	l.Wait()

	if n := len(st.Queries()); n != 1 {
		t.Errorf("store saw %d requests, want 1", n)
	}
	s := l.State()
	if len(s.Items) != 0 {
		t.Error("stale page should not be applied after reset")
	}
	if s.Refreshing || s.Loading {
		t.Errorf("closed loader reports refreshing=%v loading=%v", s.Refreshing, s.Loading)
	}
}

func TestDeferredResetUsesResetContext(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan Query, 2)
	st := StoreFunc(func(ctx context.Context, q Query) ([]Item, error) {
		started <- q
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return makePage("fresh", 20), nil
	})
	rec := &recorder{}
	l := New(st, WithPageSize(20), WithListener(rec))

	loadCtx, cancelLoad := context.WithCancel(context.Background())
	if err := l.LoadNextPage(loadCtx); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := l.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	cancelLoad()

	gate <- struct{}{} // page load lands cancelled and is discarded
	if q := <-started; q.Skip != 0 {
		t.Errorf("reset fetch skip = %d, want 0", q.Skip)
	}
	gate <- struct{}{}
	l.Wait()

	changed, failed := rec.counts()
	if changed != 1 || failed != 0 {
		t.Fatalf("signals: changed=%d failed=%d %v, want changed=1", changed, failed, rec.failed)
	}
	if !rec.changed[0].Refreshed {
		t.Error("reset completion should carry Refreshed")
	}
	if n := len(l.State().Items); n != 20 {
		t.Errorf("items = %d, want 20", n)
	}
}

func TestDispatcherDefersSignals(t *testing.T) {
	var mu sync.Mutex
	var queued []func()
	dispatch := func(fn func()) {
		mu.Lock()
		queued = append(queued, fn)
		mu.Unlock()
	}
	rec := &recorder{}
	l := New(newScriptedStore(result{items: makePage("a", 20)}), WithListener(rec), WithDispatcher(dispatch))

	loadAndWait(t, l)
	if changed, _ := rec.counts(); changed != 0 {
		t.Fatal("listener called before dispatch ran")
	}
	if len(l.State().Items) != 20 {
		t.Error("state should be applied before dispatch")
	}

	mu.Lock()
	pending := queued
	mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	if changed, _ := rec.counts(); changed != 1 {
		t.Errorf("FeedChanged calls = %d, want 1", changed)
	}
}

func TestTimeoutReportsFetchError(t *testing.T) {
	st := StoreFunc(func(ctx context.Context, q Query) ([]Item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rec := &recorder{}
	l := New(st, WithListener(rec), WithTimeout(10*time.Millisecond))

	loadAndWait(t, l)

	if _, failed := rec.counts(); failed != 1 {
		t.Fatalf("FeedFailed calls = %d, want 1", failed)
	}
	if !errors.Is(rec.failed[0], context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", rec.failed[0])
	}
	if l.State().Page != 1 {
		t.Error("timeout should not advance the page")
	}
}

func TestStateIsACopy(t *testing.T) {
	l := New(newScriptedStore(result{items: makePage("a", 2)}))
	loadAndWait(t, l)

	s := l.State()
	s.Items[0].Caption = "changed"
	if l.State().Items[0].Caption == "changed" {
		t.Error("State should not alias loader storage")
	}
}

func TestShouldLoadMore(t *testing.T) {
	tests := []struct {
		name                                 string
		offset, content, viewport, threshold float64
		want                                 bool
	}{
		{"near bottom", 950, 1000, 100, 100, true},
		{"mid list", 500, 1000, 100, 100, false},
		{"exactly at threshold", 800, 1000, 100, 100, true},
		{"one short of threshold", 799, 1000, 100, 100, false},
		{"content shorter than viewport", 0, 50, 100, 0, true},
		{"zero threshold at end", 900, 1000, 100, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldLoadMore(tt.offset, tt.content, tt.viewport, tt.threshold); got != tt.want {
				t.Errorf("ShouldLoadMore(%v, %v, %v, %v) = %v, want %v",
					tt.offset, tt.content, tt.viewport, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestPageQuery(t *testing.T) {
	q := PageQuery(3, 20)
	if q.Skip != 40 || q.Limit != 20 {
		t.Errorf("PageQuery(3, 20) skip/limit = %d/%d", q.Skip, q.Limit)
	}
	if q := PageQuery(0, 20); q.Skip != 0 {
		t.Errorf("PageQuery(0, 20) skip = %d, want 0", q.Skip)
	}
}
