// Package app wires configuration to a backend, an event log and a loader.
// Both commands build their runtime through it.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abelbrown/feedview/internal/config"
	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/otel"
	"github.com/abelbrown/feedview/internal/parse"
	"github.com/abelbrown/feedview/internal/store"
)

// Backend is the item store selected by the config.
type Backend struct {
	Name  string
	Store feed.Store
	Local *store.Store // set for the sqlite backend only
}

// OpenBackend validates cfg and opens its store.
func OpenBackend(cfg *config.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendParse:
		client := parse.NewClient(parse.Options{
			ServerURL:         cfg.Parse.ServerURL,
			ApplicationID:     cfg.Parse.ApplicationID,
			RESTKey:           cfg.Parse.RESTKey,
			SessionToken:      cfg.Parse.SessionToken,
			ClassName:         cfg.Parse.ClassName,
			Timeout:           cfg.Feed.FetchTimeout(),
			RequestsPerSecond: cfg.Parse.RatePerSecond,
		})
		return &Backend{Name: config.BackendParse, Store: client}, nil

	default:
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return &Backend{Name: config.BackendSQLite, Store: st, Local: st}, nil
	}
}

// Close releases the local database, if any.
func (b *Backend) Close() error {
	if b == nil || b.Local == nil {
		return nil
	}
	return b.Local.Close()
}

// EventsPath returns ~/.feedview/events.jsonl.
func EventsPath() string {
	return filepath.Join(config.Dir(), "events.jsonl")
}

// OpenEvents appends JSONL events to path. The returned func flushes the
// logger and closes the file.
func OpenEvents(path string) (*otel.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	events := otel.NewLogger(f)
	return events, func() {
		events.Close()
		f.Close()
	}, nil
}

// NewLoader builds a loader over s with the feed settings from cfg. Extra
// options are applied last.
func NewLoader(cfg *config.Config, s feed.Store, events *otel.Logger, opts ...feed.Option) *feed.Loader {
	base := []feed.Option{
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithTimeout(cfg.Feed.FetchTimeout()),
		feed.WithEvents(events),
	}
	return feed.New(s, append(base, opts...)...)
}
