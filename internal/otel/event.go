// Package otel records structured events for feedview.
//
// Events are typed structs written as JSONL lines by an asynchronous Logger.
// An optional RingBuffer keeps the most recent events in memory for the
// debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level is event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind names an event as "<subsystem>.<action>".
type EventKind string

const (
	// Loader events
	KindPageRequest  EventKind = "page.request"
	KindPageLoaded   EventKind = "page.loaded"
	KindPageEmpty    EventKind = "page.empty"
	KindPageError    EventKind = "page.error"
	KindPageRejected EventKind = "page.rejected"
	KindPageStale    EventKind = "page.stale"

	KindRefreshStart    EventKind = "refresh.start"
	KindRefreshComplete EventKind = "refresh.complete"

	// Import events
	KindImportStart    EventKind = "import.start"
	KindImportComplete EventKind = "import.complete"
	KindImportError    EventKind = "import.error"

	// UI events
	KindKeyPress EventKind = "ui.key"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is a single observability record. Only Kind is required.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "loader", "ui", "coord", "main"
	SessionID string         `json:"session_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // filled from Dur on marshal
	Page      int            `json:"page,omitempty"`
	Skip      int            `json:"skip,omitempty"`
	Count     int            `json:"count,omitempty"`
	Total     int            `json:"total,omitempty"`
	Source    string         `json:"source,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := struct {
		alias
	}{alias: alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// ParseEvent decodes one JSONL line. Dur is rebuilt from dur_ms.
func ParseEvent(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, err
	}
	if e.DurMs > 0 {
		e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
	}
	return e, nil
}
