// Package ui provides the Bubble Tea TUI for feedview.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/feedview/internal/feed"
)

// FeedChanged is sent when the loader finished a fetch successfully,
// including a fetch that returned no posts.
type FeedChanged struct {
	Update feed.Update
}

// FeedFailed is sent when a fetch failed. The feed is unchanged.
type FeedFailed struct {
	Err    error
	Update feed.Update
}

// ImportComplete is sent when a background RSS import of one source
// finishes.
type ImportComplete struct {
	Source   string
	NewItems int
	Err      error
}

// loadMore asks the App to request the next page from inside Update.
type loadMore struct{}

// Sender is the part of *tea.Program the listener needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Listener forwards loader signals into the Bubble Tea event loop, so the
// App only ever sees them on its own goroutine.
type Listener struct {
	program Sender
}

// NewListener returns a feed.Listener that sends to program.
func NewListener(program Sender) *Listener {
	return &Listener{program: program}
}

func (l *Listener) FeedChanged(u feed.Update) {
	if l == nil || l.program == nil {
		return
	}
	l.program.Send(FeedChanged{Update: u})
}

func (l *Listener) FeedFailed(err error, u feed.Update) {
	if l == nil || l.program == nil {
		return
	}
	l.program.Send(FeedFailed{Err: err, Update: u})
}
