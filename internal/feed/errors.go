package feed

import (
	"errors"
	"fmt"
)

// Rejections returned by LoadNextPage and Reset. None of them issue a request.
var (
	ErrBusy      = errors.New("feed: a page is already loading")
	ErrExhausted = errors.New("feed: no more pages")
	ErrClosed    = errors.New("feed: loader closed")
)

// FetchError wraps any failure reported by the Store: network, server or
// decoding. The loader never retries; the same page is requested again on
// the next call.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load page %d failed", e.Page)
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Description returns a message suitable for showing to the user.
func Description(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Err == nil {
		return "Please try again..."
	}
	return err.Error()
}
