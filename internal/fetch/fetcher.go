// Package fetch turns RSS and Atom feeds into posts for the local store.
//
// It is the seeding path for the SQLite backend: each feed entry becomes a
// post and each author a user, with IDs derived from the entry so repeated
// imports are idempotent.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abelbrown/feedview/internal/feed"
	"github.com/mmcdole/gofeed"
)

// maxCaption is the longest caption kept from a feed entry, in runes.
const maxCaption = 280

// Source is a feed to import.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultSources are image-heavy public feeds that make a reasonable demo.
func DefaultSources() []Source {
	return []Source{
		{Name: "NASA Image of the Day", URL: "https://www.nasa.gov/feeds/iotd-feed/"},
		{Name: "Wikimedia Picture of the Day", URL: "https://commons.wikimedia.org/w/api.php?action=featuredfeed&feed=potd&feedformat=rss&language=en"},
		{Name: "Hacker News", URL: "https://news.ycombinator.com/rss"},
	}
}

// Fetcher downloads and converts feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given HTTP timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads src and returns its entries as posts. It does not store
// them.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]feed.Item, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "feedview/0.1 (+https://github.com/abelbrown/feedview)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	items := make([]feed.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, convertEntry(entry, src, now))
	}
	return items, nil
}

// convertEntry maps a feed entry onto a post. Entries without a date are
// stamped with fetchTime.
func convertEntry(entry *gofeed.Item, src Source, fetchTime time.Time) feed.Item {
	created := fetchTime
	if entry.PublishedParsed != nil {
		created = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		created = *entry.UpdatedParsed
	}
	updated := created
	if entry.UpdatedParsed != nil {
		updated = *entry.UpdatedParsed
	}

	author := src.Name
	if entry.Author != nil && strings.TrimSpace(entry.Author.Name) != "" {
		author = strings.TrimSpace(entry.Author.Name)
	}

	caption := strings.TrimSpace(entry.Title)
	if caption == "" {
		caption = strings.TrimSpace(entry.Description)
	}

	return feed.Item{
		ID:        entryID(entry),
		Caption:   truncate(caption, maxCaption),
		ImageURL:  imageURL(entry),
		CreatedAt: created,
		UpdatedAt: updated,
		User: &feed.User{
			ID:       hashString("user:" + src.Name + ":" + author),
			Username: author,
		},
	}
}

// imageURL prefers the entry image, then the first image enclosure.
func imageURL(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// entryID derives a stable ID from the GUID, then the link, then the title
// and date.
func entryID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return hashString(entry.GUID)
	}
	if entry.Link != "" {
		return hashString(entry.Link)
	}
	key := entry.Title
	if entry.PublishedParsed != nil {
		key += entry.PublishedParsed.String()
	}
	return hashString(key)
}

// hashString returns the first 8 bytes of sha256(s) as hex.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
