// Package parse reads posts from a Parse Server over its REST API.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/feedview/internal/feed"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	ServerURL         string // e.g. https://parseapi.back4app.com
	ApplicationID     string
	RESTKey           string
	SessionToken      string // optional
	ClassName         string // default "Post"
	CaptionField      string // default "caption"
	ImageField        string // default "imageFile"
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 means unlimited
}

// Client implements feed.Store against /classes/{ClassName}.
type Client struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient returns a Client. Missing options take their defaults.
func NewClient(opts Options) *Client {
	if opts.ClassName == "" {
		opts.ClassName = "Post"
	}
	if opts.CaptionField == "" {
		opts.CaptionField = "caption"
	}
	if opts.ImageField == "" {
		opts.ImageField = "imageFile"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Available reports whether the client has enough configuration to talk to
// a server.
func (c *Client) Available() bool {
	return c.opts.ServerURL != "" && c.opts.ApplicationID != ""
}

// Fetch runs a find query and returns the decoded posts.
func (c *Client) Fetch(ctx context.Context, q feed.Query) ([]feed.Item, error) {
	if !c.Available() {
		return nil, fmt.Errorf("parse: server URL and application id are required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.opts.ServerURL + "/classes/" + url.PathEscape(c.opts.ClassName) + "?" + encodeQuery(q).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Parse-Application-Id", c.opts.ApplicationID)
	if c.opts.RESTKey != "" {
		req.Header.Set("X-Parse-REST-API-Key", c.opts.RESTKey)
	}
	if c.opts.SessionToken != "" {
		req.Header.Set("X-Parse-Session-Token", c.opts.SessionToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var found findResponse
	if err := json.Unmarshal(body, &found); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	items := make([]feed.Item, 0, len(found.Results))
	for _, obj := range found.Results {
		item, err := c.toItem(obj, q.Includes(feed.IncludeUser))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// encodeQuery maps a feed.Query onto Parse find parameters.
func encodeQuery(q feed.Query) url.Values {
	v := url.Values{}
	if len(q.OrderBy) > 0 {
		keys := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			keys[i] = o.Field
			if o.Desc {
				keys[i] = "-" + o.Field
			}
		}
		v.Set("order", strings.Join(keys, ","))
	}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(q.Include) > 0 {
		v.Set("include", strings.Join(q.Include, ","))
	}
	return v
}

func (c *Client) toItem(obj map[string]json.RawMessage, withUser bool) (feed.Item, error) {
	var item feed.Item
	if err := decodeField(obj, "objectId", &item.ID); err != nil {
		return item, err
	}
	if item.ID == "" {
		return item, fmt.Errorf("parse response: object without objectId")
	}
	if err := decodeField(obj, c.opts.CaptionField, &item.Caption); err != nil {
		return item, err
	}

	var created, updated string
	if err := decodeField(obj, "createdAt", &created); err != nil {
		return item, err
	}
	if err := decodeField(obj, "updatedAt", &updated); err != nil {
		return item, err
	}
	var err error
	if item.CreatedAt, err = parseTime(created); err != nil {
		return item, fmt.Errorf("object %s createdAt: %w", item.ID, err)
	}
	if item.UpdatedAt, err = parseTime(updated); err != nil {
		return item, fmt.Errorf("object %s updatedAt: %w", item.ID, err)
	}

	var file fileValue
	if err := decodeField(obj, c.opts.ImageField, &file); err != nil {
		return item, err
	}
	item.ImageURL = file.URL

	if withUser {
		var u userValue
		if err := decodeField(obj, "user", &u); err != nil {
			return item, err
		}
		if u.ObjectID != "" {
			item.User = &feed.User{ID: u.ObjectID, Username: u.Username}
		}
	}
	return item, nil
}

func decodeField(obj map[string]json.RawMessage, key string, dst any) error {
	raw, ok := obj[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("parse response: field %q: %w", key, err)
	}
	return nil
}

// parseTime accepts the ISO-8601 strings Parse uses for built-in dates.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
