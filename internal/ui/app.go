package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/logging"
	"github.com/abelbrown/feedview/internal/otel"
)

// Pager is the loader as seen by the App. *feed.Loader implements it.
type Pager interface {
	LoadNextPage(ctx context.Context) error
	Reset(ctx context.Context) error
	State() feed.State
	Detach()
}

// AppConfig wires the App.
type AppConfig struct {
	Pager     Pager
	Context   context.Context // passed to every load; defaults to Background
	Threshold int             // rows from the end that trigger the next page
	Title     string
	Events    *otel.Logger     // optional
	Ring      *otel.RingBuffer // optional, feeds the debug overlay
}

// App is the root Bubble Tea model.
// App does not touch the loader's items directly. It renders the snapshot
// carried by FeedChanged and FeedFailed.
type App struct {
	pager     Pager
	ctx       context.Context
	threshold int
	title     string
	events    *otel.Logger
	ring      *otel.RingBuffer
	keys      keyMap
	spinner   spinner.Model

	items        []feed.Item
	cursor       int
	offset       int
	hasMore      bool
	loading      bool
	refreshing   bool
	err          error
	notice       string
	debugVisible bool

	width  int
	height int
	ready  bool
}

// NewApp creates an App around cfg.Pager.
func NewApp(cfg AppConfig) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	title := cfg.Title
	if title == "" {
		title = "feedview"
	}
	threshold := cfg.Threshold
	if threshold < 0 {
		threshold = 0
	}

	return App{
		pager:     cfg.Pager,
		ctx:       ctx,
		threshold: threshold,
		title:     title,
		events:    cfg.Events,
		ring:      cfg.Ring,
		keys:      defaultKeys(),
		spinner:   s,
		hasMore:   true,
	}
}

// Init requests the first page.
func (a App) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg { return loadMore{} }, a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.offset = calcScrollOffset(a.offset, a.cursor, len(a.items), a.listHeight())
		// Init requests the first page; a resize only tops up a short list.
		if len(a.items) == 0 {
			return a, nil
		}
		return a, a.maybeLoadMore()

	case loadMore:
		return a, a.requestNextPage()

	case FeedChanged:
		a.apply(msg.Update)
		a.err = nil
		if msg.Update.Appended > 0 {
			return a, a.maybeLoadMore()
		}
		return a, nil

	case FeedFailed:
		a.apply(msg.Update)
		a.err = msg.Err
		logging.Warn("page load failed", "page", msg.Update.State.Page, "err", msg.Err)
		return a, nil

	case ImportComplete:
		switch {
		case msg.Err != nil:
			a.notice = fmt.Sprintf("import %s failed: %v", msg.Source, msg.Err)
		case msg.NewItems > 0:
			a.notice = fmt.Sprintf("%d new posts from %s, press r to refresh", msg.NewItems, msg.Source)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// apply takes the loader's snapshot as the new list.
func (a *App) apply(u feed.Update) {
	a.items = u.State.Items
	a.hasMore = u.State.HasMore
	a.loading = u.State.Loading
	if u.Refreshed {
		a.refreshing = false
		a.cursor = 0
		a.offset = 0
	}
	if a.cursor >= len(a.items) {
		a.cursor = len(a.items) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
	a.offset = calcScrollOffset(a.offset, a.cursor, len(a.items), a.listHeight())
}

func (a App) busy() bool {
	return a.loading || a.refreshing
}

// requestNextPage asks the loader for the next page. Rejections are not
// errors: the loader is busy, exhausted or gone.
func (a *App) requestNextPage() tea.Cmd {
	if a.pager == nil {
		return nil
	}
	wasBusy := a.busy()
	err := a.pager.LoadNextPage(a.ctx)
	switch {
	case err == nil:
		a.loading = true
	case errors.Is(err, feed.ErrExhausted):
		a.hasMore = false
		return nil
	default:
		return nil
	}
	if !wasBusy {
		return a.spinner.Tick
	}
	return nil
}

// maybeLoadMore requests the next page when the viewport is near the end of
// the list.
func (a *App) maybeLoadMore() tea.Cmd {
	if !a.ready || !a.hasMore || a.loading || a.refreshing {
		return nil
	}
	if !feed.ShouldLoadMore(float64(a.offset), float64(len(a.items)), float64(a.listHeight()), float64(a.threshold)) {
		return nil
	}
	return a.requestNextPage()
}

func (a *App) refresh() tea.Cmd {
	if a.pager == nil {
		return nil
	}
	wasBusy := a.busy()
	if err := a.pager.Reset(a.ctx); err != nil {
		return nil
	}
	a.refreshing = true
	a.loading = true
	a.hasMore = true
	a.notice = ""
	if !wasBusy {
		return a.spinner.Tick
	}
	return nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: msg.String()})
	}

	// Any key dismisses the error bar.
	a.err = nil

	switch {
	case key.Matches(msg, a.keys.Quit):
		if a.pager != nil {
			a.pager.Detach()
		}
		return a, tea.Quit

	case key.Matches(msg, a.keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil

	case key.Matches(msg, a.keys.Refresh):
		return a, a.refresh()

	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.PageDown):
		a.moveCursor(a.listHeight())
	case key.Matches(msg, a.keys.PageUp):
		a.moveCursor(-a.listHeight())
	case key.Matches(msg, a.keys.Top):
		a.moveCursor(-len(a.items))
	case key.Matches(msg, a.keys.Bottom):
		a.moveCursor(len(a.items))
	default:
		return a, nil
	}

	return a, a.maybeLoadMore()
}

func (a *App) moveCursor(delta int) {
	if len(a.items) == 0 {
		return
	}
	a.cursor += delta
	if a.cursor < 0 {
		a.cursor = 0
	}
	if a.cursor >= len(a.items) {
		a.cursor = len(a.items) - 1
	}
	a.offset = calcScrollOffset(a.offset, a.cursor, len(a.items), a.listHeight())
}

// listHeight is the number of rows available to posts.
func (a App) listHeight() int {
	h := a.height - 2 // header and status bar
	if a.err != nil {
		h--
	}
	if a.notice != "" {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		var st feed.State
		if a.pager != nil {
			st = a.pager.State()
		}
		return debugOverlay(a.ring, st, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	header := a.title
	if a.refreshing {
		header = a.spinner.View() + " " + header + "  refreshing..."
	}

	var footer string
	switch {
	case a.loading && !a.refreshing:
		footer = a.spinner.View() + " Loading more..."
	case !a.hasMore && len(a.items) > 0:
		footer = "end of feed"
	}

	// Scroll one row further at the bottom so the footer is visible.
	offset := a.offset
	height := a.listHeight()
	if footer != "" && a.cursor == len(a.items)-1 && offset+height <= len(a.items) {
		offset = len(a.items) - height + 1
		if offset < 0 {
			offset = 0
		}
	}

	var b []byte
	b = append(b, Header.Width(a.width).Render(header)...)
	b = append(b, '\n')
	b = append(b, RenderStream(a.items, a.cursor, offset, a.width, height, footer)...)
	if a.notice != "" {
		b = append(b, NoticeStyle.Width(a.width).Render(a.notice)...)
		b = append(b, '\n')
	}
	if a.err != nil {
		b = append(b, ErrorStyle.Width(a.width).Render("Oops... "+feed.Description(a.err)+" (press any key to dismiss)")...)
		b = append(b, '\n')
	}

	var state string
	switch {
	case a.refreshing:
		state = "refreshing"
	case a.loading:
		state = "loading"
	case !a.hasMore:
		state = "end"
	}
	b = append(b, RenderStatusBar(a.cursor, len(a.items), a.width, state)...)
	return string(b)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Items returns the current items (for testing).
func (a App) Items() []feed.Item {
	return a.items
}

// Refreshing reports whether a pull-to-refresh is pending.
func (a App) Refreshing() bool {
	return a.refreshing
}

// Err returns the error shown in the error bar, if any.
func (a App) Err() error {
	return a.err
}
