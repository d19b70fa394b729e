package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/feedview/internal/feed"
)

// userColWidth is the width of the author column, including the "@".
const userColWidth = 16

// RenderStream renders height rows of items starting at offset. footer, when
// set, takes the row after the last post.
func RenderStream(items []feed.Item, cursor, offset, width, height int, footer string) string {
	if len(items) == 0 {
		if footer != "" {
			return FooterStyle.Render(footer) + "\n"
		}
		return HelpStyle.Render("No posts yet. Press 'r' to refresh.")
	}
	if height < 1 {
		height = 1
	}

	var b strings.Builder
	rendered := 0
	for i := offset; i < len(items) && rendered < height; i++ {
		b.WriteString(renderItemLine(items[i], i == cursor, width))
		b.WriteString("\n")
		rendered++
	}
	if footer != "" && rendered < height {
		b.WriteString(FooterStyle.Render(footer))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible row that keeps cursor on screen,
// moving as little as possible from prev.
func calcScrollOffset(prev, cursor, total, height int) int {
	if total == 0 || height < 1 {
		return 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	offset := prev
	if cursor < offset {
		offset = cursor
	}
	if cursor >= offset+height {
		offset = cursor - height + 1
	}
	if last := total - height; offset > last {
		offset = last
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

// renderItemLine renders one post: author, caption, image marker and age.
func renderItemLine(item feed.Item, selected bool, width int) string {
	user := "@unknown"
	if item.User != nil && item.User.Username != "" {
		user = "@" + item.User.Username
	}
	user = truncateRunes(user, userColWidth)
	userField := user + strings.Repeat(" ", userColWidth-utf8.RuneCountInString(user)+1)

	meta := formatAgeShort(item.CreatedAt)
	if item.ImageURL != "" {
		meta = "[img] " + meta
	}

	captionWidth := width - userColWidth - 1 - utf8.RuneCountInString(meta) - 4
	if captionWidth < 10 {
		captionWidth = 10
	}
	caption := truncateRunes(strings.Join(strings.Fields(item.Caption), " "), captionWidth)
	pad := captionWidth - utf8.RuneCountInString(caption)
	if pad < 0 {
		pad = 0
	}

	if selected {
		return SelectedItem.Width(width).Render(userField + caption + strings.Repeat(" ", pad) + " " + meta)
	}
	line := UserBadge.Render(userField) + caption + strings.Repeat(" ", pad) + " " + MetaItem.Render(meta)
	return NormalItem.Render(line)
}

func formatAgeShort(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// truncateRunes shortens s to n runes, ending in "..." when cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// RenderStatusBar renders the bottom status bar with position, loader state
// and key hints.
func RenderStatusBar(cursor, total, width int, state string) string {
	position := fmt.Sprintf(" %d/%d ", cursor+1, total)
	if total == 0 {
		position = " 0/0 "
	}
	if state != "" {
		position += state + " "
	}

	keys := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("?") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")

	padding := width - lipgloss.Width(position) - lipgloss.Width(keyHints) - 2
	if padding < 0 {
		padding = 0
	}

	bar := position + strings.Repeat(" ", padding) + keyHints
	return StatusBar.Width(width).Render(bar)
}
