package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/feedview/internal/feed"
	"github.com/abelbrown/feedview/internal/store"
)

// seedFixtureDB writes n posts into ~/.feedview/feedview.db under homeDir.
// Captions are "Fixture Post 00", "Fixture Post 01", ... newest first.
func seedFixtureDB(homeDir string, n int) error {
	dataDir := filepath.Join(homeDir, ".feedview")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(dataDir, "feedview.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now().UTC()
	user := &feed.User{ID: "fixture-user", Username: "fixture"}
	items := make([]feed.Item, n)
	for i := range items {
		created := now.Add(-time.Duration(i) * time.Minute)
		items[i] = feed.Item{
			ID:        fmt.Sprintf("post-%02d", i),
			Caption:   fmt.Sprintf("Fixture Post %02d", i),
			CreatedAt: created,
			UpdatedAt: created,
			User:      user,
		}
	}
	_, err = st.Save(context.Background(), items)
	return err
}
