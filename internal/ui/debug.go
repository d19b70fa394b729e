package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders loader state, event counters and recent events.
// Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, st feed.State, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Loader"))
	lines = append(lines, fmt.Sprintf("  Page:       %d (size %d), %d posts", st.Page, st.PageSize, len(st.Items)))
	lines = append(lines, fmt.Sprintf("  Flags:      loading=%t more=%t refreshing=%t", st.Loading, st.HasMore, st.Refreshing))
	lines = append(lines, fmt.Sprintf("  Pages:      %d loaded, %d empty, %d errors",
		stats[otel.KindPageLoaded], stats[otel.KindPageEmpty], stats[otel.KindPageError]))
	lines = append(lines, fmt.Sprintf("  Requests:   %d issued, %d rejected, %d stale",
		stats[otel.KindPageRequest], stats[otel.KindPageRejected], stats[otel.KindPageStale]))
	lines = append(lines, fmt.Sprintf("  Refreshes:  %d started, %d complete",
		stats[otel.KindRefreshStart], stats[otel.KindRefreshComplete]))
	lines = append(lines, fmt.Sprintf("  Imports:    %d complete, %d errors",
		stats[otel.KindImportComplete], stats[otel.KindImportError]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-18s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Page > 0 {
			line += fmt.Sprintf("  p%d", e.Page)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("?") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
