// Package podcastapi provides a client for the remote podcast catalog API.
package podcastapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/domain/catalog"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "server error: " + strconv.Itoa(e.Code)
}

// IsNotFound reports whether err is a 404 from the catalog.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Config represents catalog client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Client is a catalog API client with an LRU response cache.
type Client struct {
	baseURL    string
	httpClient *http.Client

	previews *expirable.LRU[string, []catalog.Preview]
	shows    *expirable.LRU[string, *catalog.Show]
	genres   *expirable.LRU[int, *catalog.Genre]
}

const previewsKey = "all"

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid catalog base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		previews:   expirable.NewLRU[string, []catalog.Preview](1, nil, cfg.CacheTTL),
		shows:      expirable.NewLRU[string, *catalog.Show](cfg.CacheSize, nil, cfg.CacheTTL),
		genres:     expirable.NewLRU[int, *catalog.Genre](cfg.CacheSize, nil, cfg.CacheTTL),
	}, nil
}

// ListPreviews retrieves every show preview.
func (c *Client) ListPreviews(ctx context.Context) ([]catalog.Preview, error) {
	if cached, ok := c.previews.Get(previewsKey); ok {
		return cached, nil
	}

	var previews []catalog.Preview
	if err := c.get(ctx, "/", &previews); err != nil {
		return nil, errors.Wrap(err, "failed to list shows")
	}
	c.previews.Add(previewsKey, previews)
	zlog.Debug().Msgf("podcastapi: fetched previews: count=%d", len(previews))
	return previews, nil
}

// GetShow retrieves a show with its seasons and episodes.
func (c *Client) GetShow(ctx context.Context, id string) (*catalog.Show, error) {
	if id == "" {
		return nil, errors.New("show id is required")
	}
	if cached, ok := c.shows.Get(id); ok {
		return cached, nil
	}

	var show catalog.Show
	if err := c.get(ctx, "/id/"+url.PathEscape(id), &show); err != nil {
		return nil, errors.Wrapf(err, "failed to get show %s", id)
	}
	c.shows.Add(id, &show)
	return &show, nil
}

// GetGenre retrieves a genre.
func (c *Client) GetGenre(ctx context.Context, id int) (*catalog.Genre, error) {
	if cached, ok := c.genres.Get(id); ok {
		return cached, nil
	}

	var genre catalog.Genre
	if err := c.get(ctx, "/genre/"+catalog.GenreKey(id), &genre); err != nil {
		return nil, errors.Wrapf(err, "failed to get genre %d", id)
	}
	if genre.ID == 0 {
		genre.ID = id
	}
	c.genres.Add(id, &genre)
	return &genre, nil
}

// Purge drops every cached response.
func (c *Client) Purge() {
	c.previews.Purge()
	c.shows.Purge()
	c.genres.Purge()
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
