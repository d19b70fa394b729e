// Package store is a SQLite-backed post store for feedview.
//
// It stands in for the hosted backend: posts and their authors live in two
// tables and Fetch answers the same skip/limit queries the remote API does.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/feedview/internal/feed"

	_ "modernc.org/sqlite"
)

// defaultLimit matches the hosted backend's default page size.
const defaultLimit = 100

// memSeq names in-memory databases so each Open gets its own.
var memSeq atomic.Uint64

// orderColumns maps query fields to columns. Anything else is rejected.
var orderColumns = map[string]string{
	feed.FieldCreatedAt: "p.created_at",
	"updatedAt":         "p.updated_at",
}

// Store persists posts and users. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Stats summarizes the store contents.
type Stats struct {
	Posts  int
	Users  int
	Newest time.Time
	Oldest time.Time
}

// Open opens (creating if needed) the database at dbPath. ":memory:" gives
// a private in-memory database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	memory := dbPath == ":memory:"
	if memory {
		connStr = fmt.Sprintf("file:feedview-mem-%d?mode=memory&cache=shared", memSeq.Add(1))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id),
		caption TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database. Waits for in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save inserts posts and their authors in one transaction and returns how
// many posts were new. Existing rows are left untouched.
func (s *Store) Save(ctx context.Context, items []feed.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	userStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO users (id, username, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare users: %w", err)
	}
	defer userStmt.Close()

	postStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO posts (id, user_id, caption, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare posts: %w", err)
	}
	defer postStmt.Close()

	var inserted int
	for _, item := range items {
		if item.ID == "" {
			return 0, fmt.Errorf("save post: empty id")
		}
		var userID sql.NullString
		if item.User != nil && item.User.ID != "" {
			userID = sql.NullString{String: item.User.ID, Valid: true}
			if _, err := userStmt.ExecContext(ctx, item.User.ID, item.User.Username, item.CreatedAt.UTC()); err != nil {
				return 0, fmt.Errorf("save user %s: %w", item.User.ID, err)
			}
		}

		updated := item.UpdatedAt
		if updated.IsZero() {
			updated = item.CreatedAt
		}
		// Timestamps are stored in UTC so text ordering matches time ordering.
		res, err := postStmt.ExecContext(ctx, item.ID, userID, item.Caption, item.ImageURL, item.CreatedAt.UTC(), updated.UTC())
		if err != nil {
			return 0, fmt.Errorf("save post %s: %w", item.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Fetch returns one page of posts. It implements feed.Store.
// Without an explicit order, posts come newest first.
func (s *Store) Fetch(ctx context.Context, q feed.Query) ([]feed.Item, error) {
	if q.Skip < 0 {
		return nil, fmt.Errorf("invalid skip %d", q.Skip)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	orderBy, err := orderClause(q.OrderBy)
	if err != nil {
		return nil, err
	}
	withUser := q.Includes(feed.IncludeUser)

	query := `
		SELECT p.id, p.caption, p.image_url, p.created_at, p.updated_at, p.user_id, u.username
		FROM posts p
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?
	`

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, limit, q.Skip)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var items []feed.Item
	for rows.Next() {
		var item feed.Item
		var userID, username sql.NullString
		if err := rows.Scan(&item.ID, &item.Caption, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt, &userID, &username); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if withUser && userID.Valid {
			item.User = &feed.User{ID: userID.String, Username: username.String}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

// Stats returns counts and the creation-time range of stored posts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&st.Posts); err != nil {
		return Stats{}, fmt.Errorf("count posts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&st.Users); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if st.Posts == 0 {
		return st, nil
	}

	row := s.db.QueryRowContext(ctx, "SELECT created_at FROM posts ORDER BY created_at DESC LIMIT 1")
	if err := row.Scan(&st.Newest); err != nil {
		return Stats{}, fmt.Errorf("newest post: %w", err)
	}
	row = s.db.QueryRowContext(ctx, "SELECT created_at FROM posts ORDER BY created_at ASC LIMIT 1")
	if err := row.Scan(&st.Oldest); err != nil {
		return Stats{}, fmt.Errorf("oldest post: %w", err)
	}
	return st, nil
}

// orderClause builds a deterministic ORDER BY. The id tiebreaker keeps
// offset pages stable when timestamps collide.
func orderClause(orders []feed.Order) (string, error) {
	if len(orders) == 0 {
		return "p.created_at DESC, p.id DESC", nil
	}
	parts := make([]string, 0, len(orders)+1)
	tiebreak := "p.id DESC"
	for i, o := range orders {
		col, ok := orderColumns[o.Field]
		if !ok {
			return "", fmt.Errorf("unsupported order field %q", o.Field)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		if i == 0 {
			tiebreak = "p.id " + dir
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, tiebreak)
	return strings.Join(parts, ", "), nil
}
