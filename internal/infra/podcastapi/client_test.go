package podcastapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showJSON = `{
	"id": "10716",
	"title": "Something Was Wrong",
	"description": "An award-winning docuseries",
	"image": "https://content.production.cdn.art19.com/images/show.jpeg",
	"genres": ["Personal Growth", "True Crime"],
	"updated": "2022-11-03T07:00:00.000Z",
	"seasons": [
		{
			"season": 1,
			"title": "Season 1",
			"image": "https://content.production.cdn.art19.com/images/s1.jpeg",
			"episodes": [
				{"title": "Pilot", "description": "First", "episode": 1, "file": "https://podcast-api.netlify.app/placeholder-audio.mp3"}
			]
		}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL + "/", CacheSize: 8, CacheTTL: time.Minute})
	require.NoError(t, err)
	return client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestListPreviews(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": "10716", "title": "Something Was Wrong", "seasons": 14, "genres": [1, 2], "updated": "2022-11-03T07:00:00.000Z"},
			{"id": "5675", "title": "This Is Actually Happening", "seasons": 12, "genres": [2], "updated": "2022-11-01T07:00:00.000Z"}
		]`)
	}))

	ctx := context.Background()
	previews, err := client.ListPreviews(ctx)
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, "10716", previews[0].ID)
	assert.Equal(t, 14, previews[0].Seasons)
	assert.Equal(t, []int{1, 2}, previews[0].Genres)
	assert.Equal(t, 2022, previews[0].Updated.Year())

	// Second call is served from the cache.
	_, err = client.ListPreviews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	client.Purge()
	_, err = client.ListPreviews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetShow(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/id/10716" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, showJSON)
	}))

	show, err := client.GetShow(context.Background(), "10716")
	require.NoError(t, err)
	assert.Equal(t, "Something Was Wrong", show.Title)
	require.Len(t, show.Seasons, 1)

	d, err := show.Descriptor(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "10716-s1-e1", d.EpisodeID)
	assert.Equal(t, "https://podcast-api.netlify.app/placeholder-audio.mp3", d.AudioURL)

	_, err = client.GetShow(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "server error: 404")
}

func TestGetGenre(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/genre/1":
			fmt.Fprint(w, `{"id": 1, "title": "Personal Growth", "description": "Grow", "shows": ["10716"]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	genre, err := client.GetGenre(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Personal Growth", genre.Title)
	assert.True(t, genre.ContainsShow("10716"))

	_, err = client.GetGenre(context.Background(), 9)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "server error: 500")
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))

	_, err := client.ListPreviews(context.Background())
	assert.ErrorContains(t, err, "failed to parse response")
}
