package feed

// State is a snapshot of the loader. Items is a copy.
type State struct {
	Items      []Item
	Page       int // next page to request, 1-based
	PageSize   int
	Loading    bool
	HasMore    bool
	Refreshing bool
}

// Update accompanies every completion signal.
type Update struct {
	State     State
	Refreshed bool // this completion ends a Reset
	Appended  int  // items added by this fetch
}

// Listener is the presentation layer. Implementations should re-render the
// whole list on FeedChanged and surface err to the user on FeedFailed.
type Listener interface {
	FeedChanged(u Update)
	FeedFailed(err error, u Update)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Changed func(u Update)
	Failed  func(err error, u Update)
}

func (f ListenerFuncs) FeedChanged(u Update) {
	if f.Changed != nil {
		f.Changed(u)
	}
}

func (f ListenerFuncs) FeedFailed(err error, u Update) {
	if f.Failed != nil {
		f.Failed(err, u)
	}
}

// ShouldLoadMore reports whether the viewport is within threshold of the end
// of the content.
func ShouldLoadMore(scrollOffset, contentHeight, viewportHeight, threshold float64) bool {
	return scrollOffset+viewportHeight >= contentHeight-threshold
}
