package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/feedview/internal/feed"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	sampleSize := fs.Int("sample", 5000, "Newest posts to sample for the age distribution")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	b := openBackend(cfg)
	defer b.Close()
	requireLocal(b, "stats")

	ctx := context.Background()
	stats, err := b.Local.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database:              %s\n", cfg.DBPath)
	fmt.Printf("Posts:                 %d\n", stats.Posts)
	fmt.Printf("Users:                 %d\n", stats.Users)
	if stats.Posts == 0 {
		fmt.Println("\nNo posts yet. Run 'feedctl import'.")
		return
	}
	pageSize := cfg.Feed.PageSize
	fmt.Printf("Pages of %d:           %d\n", pageSize, (stats.Posts+pageSize-1)/pageSize)

	now := time.Now()
	fmt.Printf("\nNewest post: %s (%.0fh ago)\n", stats.Newest.Format(time.RFC3339), now.Sub(stats.Newest).Hours())
	fmt.Printf("Oldest post: %s (%.0fh ago)\n", stats.Oldest.Format(time.RFC3339), now.Sub(stats.Oldest).Hours())

	// Same query the loader issues, one big page.
	q := feed.PageQuery(1, *sampleSize)
	sample, err := b.Local.Fetch(ctx, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sample: %v\n", err)
		os.Exit(1)
	}

	buckets := []time.Duration{
		1 * time.Hour, 6 * time.Hour, 24 * time.Hour,
		7 * 24 * time.Hour, 30 * 24 * time.Hour,
	}
	labels := []string{"<1h", "<6h", "<24h", "<7d", "<30d"}

	fmt.Printf("\nBy created_at (sample %d):\n", len(sample))
	for i, d := range buckets {
		count := 0
		for _, item := range sample {
			if now.Sub(item.CreatedAt) < d {
				count++
			}
		}
		fmt.Printf("  %-8s %d\n", labels[i], count)
	}

	authors := map[string]int{}
	noImage := 0
	future := 0
	for _, item := range sample {
		if item.User != nil {
			authors[item.User.Username]++
		}
		if item.ImageURL == "" {
			noImage++
		}
		if item.CreatedAt.After(now.Add(1 * time.Hour)) {
			future++
		}
	}
	fmt.Printf("\nAuthors in sample:     %d\n", len(authors))
	fmt.Printf("Posts without image:   %d\n", noImage)
	fmt.Printf("Future created_at (>1h ahead): %d\n", future)
}
