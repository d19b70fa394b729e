package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/feedview/internal/app"
)

// eventRecord is one line of the event log. It is decoded into a local type
// so lines written by older builds stay readable.
type eventRecord struct {
	Time      time.Time `json:"t"`
	Level     string    `json:"level"`
	Kind      string    `json:"kind"`
	Comp      string    `json:"comp"`
	SessionID string    `json:"session_id"`
	DurMs     float64   `json:"dur_ms"`
	Page      int       `json:"page"`
	Skip      int       `json:"skip"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
	Source    string    `json:"source"`
	Err       string    `json:"err"`
	Msg       string    `json:"msg"`
}

var levels = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// eventFilter selects log lines. Zero fields match everything.
type eventFilter struct {
	kind     string // kind prefix, e.g. "page" or "refresh.complete"
	comp     string
	session  string // session id prefix
	minLevel string
	page     int
}

func (f eventFilter) match(ev eventRecord) bool {
	switch {
	case f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind):
		return false
	case f.comp != "" && ev.Comp != f.comp:
		return false
	case f.session != "" && !strings.HasPrefix(ev.SessionID, f.session):
		return false
	case f.minLevel != "" && levels[ev.Level] < levels[f.minLevel]:
		return false
	case f.page > 0 && ev.Page != f.page:
		return false
	}
	return true
}

func runEvents() {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	tail := fs.Int("tail", 50, "Number of recent events to show")
	follow := fs.Bool("f", false, "Keep printing new events")
	var filter eventFilter
	fs.StringVar(&filter.kind, "kind", "", "Event kind prefix (page, refresh, import, ui, sys)")
	fs.StringVar(&filter.comp, "comp", "", "Component: loader, ui, coord, main")
	fs.StringVar(&filter.session, "session", "", "Session ID prefix")
	fs.StringVar(&filter.minLevel, "level", "", "Minimum level: debug, info, warn, error")
	fs.IntVar(&filter.page, "page", 0, "Only events for this page number")
	summary := fs.Bool("summary", false, "Print per-session paging totals instead of events")
	rawJSON := fs.Bool("json", false, "Print matching lines as stored")
	fs.Parse(os.Args[1:])

	if _, ok := levels[filter.minLevel]; filter.minLevel != "" && !ok {
		fmt.Fprintf(os.Stderr, "error: unknown level %q\n", filter.minLevel)
		os.Exit(1)
	}

	path := app.EventsPath()
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintf(os.Stderr, "  No event log at %s yet; run feedview first.\n", path)
		os.Exit(1)
	}
	defer f.Close()

	if *summary {
		all := readEvents(f, 0, filter.match)
		printSummary(os.Stdout, summarize(all))
		return
	}

	show := func(l logLine) {
		if *rawJSON {
			fmt.Println(string(l.raw))
			return
		}
		fmt.Println(renderEvent(l.ev))
	}

	for _, l := range readEvents(f, *tail, filter.match) {
		show(l)
	}
	if !*follow {
		return
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
		if l, ok := decodeLine(line); ok && filter.match(l.ev) {
			show(l)
		}
	}
}

type logLine struct {
	ev  eventRecord
	raw []byte
}

func decodeLine(b []byte) (logLine, bool) {
	b = []byte(strings.TrimRight(string(b), "\r\n"))
	if len(b) == 0 {
		return logLine{}, false
	}
	var ev eventRecord
	if err := json.Unmarshal(b, &ev); err != nil {
		return logLine{}, false
	}
	return logLine{ev: ev, raw: b}, true
}

// readEvents returns the last n matching lines of r in file order, or every
// matching line when n <= 0. Malformed lines are skipped.
func readEvents(r io.Reader, n int, match func(eventRecord) bool) []logLine {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)

	var out []logLine
	next := 0 // slot to overwrite once out holds n lines
	for sc.Scan() {
		l, ok := decodeLine(sc.Bytes())
		if !ok || !match(l.ev) {
			continue
		}
		switch {
		case n <= 0 || len(out) < n:
			out = append(out, l)
		default:
			out[next] = l
			next = (next + 1) % n
		}
	}
	if next == 0 {
		return out
	}
	ordered := make([]logLine, 0, len(out))
	ordered = append(ordered, out[next:]...)
	return append(ordered, out[:next]...)
}

// renderEvent formats one event as a single line.
func renderEvent(ev eventRecord) string {
	var b strings.Builder
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}
	fmt.Fprintf(&b, "%s %-5s %-7s %-17s", ev.Time.Local().Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)

	if ev.Page > 0 {
		fmt.Fprintf(&b, " p%d", ev.Page)
		if strings.HasPrefix(ev.Kind, "page.") {
			fmt.Fprintf(&b, " skip=%d", ev.Skip)
		}
	}
	if ev.Count > 0 {
		fmt.Fprintf(&b, " +%d", ev.Count)
	}
	if ev.Total > 0 {
		fmt.Fprintf(&b, " total=%d", ev.Total)
	}
	if ev.Source != "" {
		fmt.Fprintf(&b, " %q", ev.Source)
	}
	if ev.DurMs > 0 {
		b.WriteString(" " + formatDur(ev.DurMs))
	}
	if ev.Msg != "" {
		b.WriteString(" " + ev.Msg)
	}
	if ev.Err != "" {
		b.WriteString(" err: " + ev.Err)
	}
	return b.String()
}

// formatDur renders milliseconds with precision that shrinks as they grow.
func formatDur(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	switch {
	case d >= 100*time.Millisecond:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(10 * time.Microsecond).String()
	}
}

// sessionStats totals the paging activity of one feedview run.
type sessionStats struct {
	ID        string
	Start     time.Time
	Pages     int // non-empty pages applied
	Items     int
	Empty     int
	Errors    int
	Stale     int
	Rejected  int
	Refreshes int
	fetchMs   float64
	fetches   int
}

// MeanFetch returns the average latency of completed page fetches.
func (s sessionStats) MeanFetch() time.Duration {
	if s.fetches == 0 {
		return 0
	}
	return time.Duration(s.fetchMs / float64(s.fetches) * float64(time.Millisecond))
}

// summarize groups events by session, oldest session first.
func summarize(lines []logLine) []sessionStats {
	byID := make(map[string]*sessionStats)
	for _, l := range lines {
		ev := l.ev
		s, ok := byID[ev.SessionID]
		if !ok {
			s = &sessionStats{ID: ev.SessionID, Start: ev.Time}
			byID[ev.SessionID] = s
		}
		switch ev.Kind {
		case "page.loaded":
			s.Pages++
			s.Items += ev.Count
		case "page.empty":
			s.Empty++
		case "page.error":
			s.Errors++
		case "page.stale":
			s.Stale++
		case "page.rejected":
			s.Rejected++
		case "refresh.complete":
			s.Refreshes++
		}
		if strings.HasPrefix(ev.Kind, "page.") && ev.DurMs > 0 {
			s.fetchMs += ev.DurMs
			s.fetches++
		}
	}

	out := make([]sessionStats, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func printSummary(w io.Writer, sessions []sessionStats) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no matching events")
		return
	}
	fmt.Fprintf(w, "%-16s  %-19s  %5s  %6s  %5s  %6s  %5s  %8s  %8s\n",
		"SESSION", "STARTED", "PAGES", "ITEMS", "EMPTY", "ERRORS", "STALE", "REFRESH", "AVG")
	for _, s := range sessions {
		id := s.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%-16s  %-19s  %5d  %6d  %5d  %6d  %5d  %8d  %8s\n",
			truncate(id, 16), s.Start.Local().Format("2006-01-02 15:04:05"),
			s.Pages, s.Items, s.Empty, s.Errors, s.Stale, s.Refreshes,
			s.MeanFetch().Round(time.Millisecond))
	}
}
