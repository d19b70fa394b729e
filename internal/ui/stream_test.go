package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/feedview/internal/feed"
)

func TestRenderStreamEmpty(t *testing.T) {
	out := RenderStream(nil, 0, 0, 80, 10, "")
	if !strings.Contains(out, "No posts yet") {
		t.Errorf("empty stream should show help, got %q", out)
	}
	out = RenderStream(nil, 0, 0, 80, 10, "Loading more...")
	if !strings.Contains(out, "Loading more...") {
		t.Errorf("empty stream should show the footer while loading, got %q", out)
	}
}

func TestRenderStreamWindow(t *testing.T) {
	items := posts(10)
	out := RenderStream(items, 5, 3, 80, 4, "")
	for _, want := range []string{"Post 3", "Post 4", "Post 5", "Post 6"} {
		if !strings.Contains(out, want) {
			t.Errorf("window missing %q", want)
		}
	}
	for _, absent := range []string{"Post 2", "Post 7"} {
		if strings.Contains(out, absent) {
			t.Errorf("window should not contain %q", absent)
		}
	}
}

func TestRenderStreamFooter(t *testing.T) {
	items := posts(3)
	out := RenderStream(items, 0, 0, 80, 10, "end of feed")
	if !strings.Contains(out, "end of feed") {
		t.Error("footer should follow the last post")
	}
	out = RenderStream(posts(10), 0, 0, 80, 5, "end of feed")
	if strings.Contains(out, "end of feed") {
		t.Error("footer should not render when the list fills the window")
	}
}

func TestCalcScrollOffset(t *testing.T) {
	tests := []struct {
		name                        string
		prev, cursor, total, height int
		want                        int
	}{
		{"empty", 0, 0, 0, 10, 0},
		{"fits", 0, 5, 8, 10, 0},
		{"scroll down", 0, 12, 20, 10, 3},
		{"stay", 3, 8, 20, 10, 3},
		{"scroll up", 5, 2, 20, 10, 2},
		{"clamp to end", 15, 19, 20, 10, 10},
		{"cursor past end", 0, 25, 20, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calcScrollOffset(tt.prev, tt.cursor, tt.total, tt.height); got != tt.want {
				t.Errorf("calcScrollOffset(%d, %d, %d, %d) = %d, want %d", tt.prev, tt.cursor, tt.total, tt.height, got, tt.want)
			}
		})
	}
}

func TestRenderItemLine(t *testing.T) {
	item := feed.Item{
		Caption:   "A very long caption that goes on and on well past the width of any reasonable terminal window",
		ImageURL:  "https://example.com/a.jpg",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		User:      &feed.User{Username: "bob"},
	}
	line := renderItemLine(item, false, 60)
	if !strings.Contains(line, "@bob") {
		t.Error("line should show the author")
	}
	if !strings.Contains(line, "[img]") {
		t.Error("line should mark posts with images")
	}
	if !strings.Contains(line, "2h ago") {
		t.Error("line should show the age")
	}
	if !strings.Contains(line, "...") {
		t.Error("long caption should be truncated")
	}
	if w := lipgloss.Width(line); w > 62 {
		t.Errorf("line width = %d, want at most 62", w)
	}

	anon := renderItemLine(feed.Item{Caption: "x"}, true, 60)
	if !strings.Contains(anon, "@unknown") {
		t.Error("post without a user should show @unknown")
	}
}

func TestFormatAgeShort(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAgeShort(time.Now().Add(-tt.age)); got != tt.want {
			t.Errorf("formatAgeShort(-%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
	if formatAgeShort(time.Time{}) != "" {
		t.Error("zero time should render empty")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo", 2, "hé"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestRenderStatusBar(t *testing.T) {
	bar := RenderStatusBar(4, 20, 100, "loading")
	if !strings.Contains(bar, "5/20") {
		t.Error("status bar should show position")
	}
	if !strings.Contains(bar, "loading") {
		t.Error("status bar should show loader state")
	}
	if !strings.Contains(bar, "refresh") {
		t.Error("status bar should show key hints")
	}
	if !strings.Contains(RenderStatusBar(0, 0, 100, ""), "0/0") {
		t.Error("empty feed should show 0/0")
	}
}
