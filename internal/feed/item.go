// Package feed implements incremental, offset-paginated loading of a
// reverse-chronological post feed.
//
// The Loader owns the in-memory sequence of posts for one screen. It fetches
// page-by-page from a Store, applies results in its completion handler, and
// notifies a Listener (the presentation layer) once state has settled.
//
// # Thread Safety
//
// Loader is safe for concurrent use. At most one fetch is in flight at any
// time; State returns copies that never alias the loader's slice.
package feed

import (
	"context"
	"time"
)

// Field and relation names understood by every Store.
const (
	FieldCreatedAt = "createdAt"
	IncludeUser    = "user"
)

// User is the author of a post. Only populated when the query includes it.
type User struct {
	ID       string
	Username string
}

// Item is one post in the feed. Created by the store; never mutated after
// it has been fetched.
type Item struct {
	ID        string
	Caption   string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
	User      *User
}

// Order sorts results by a single field.
type Order struct {
	Field string
	Desc  bool
}

// Query describes one page request.
type Query struct {
	OrderBy []Order
	Skip    int
	Limit   int
	Include []string
}

// Includes reports whether the named relation should be resolved.
func (q Query) Includes(name string) bool {
	for _, inc := range q.Include {
		if inc == name {
			return true
		}
	}
	return false
}

// PageQuery builds the request for a 1-based page: newest first, author
// included.
func PageQuery(page, pageSize int) Query {
	if page < 1 {
		page = 1
	}
	return Query{
		OrderBy: []Order{{Field: FieldCreatedAt, Desc: true}},
		Skip:    (page - 1) * pageSize,
		Limit:   pageSize,
		Include: []string{IncludeUser},
	}
}

// Store fetches posts from the backing data source.
// Results must be sorted by creation time, newest first.
type Store interface {
	Fetch(ctx context.Context, q Query) ([]Item, error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, q Query) ([]Item, error)

// Fetch calls f(ctx, q).
func (f StoreFunc) Fetch(ctx context.Context, q Query) ([]Item, error) {
	return f(ctx, q)
}
