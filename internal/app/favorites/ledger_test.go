package favorites

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/store"
)

func newTestLedger(t *testing.T, s store.Store) *Ledger {
	t.Helper()
	l := NewLedger(s)
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return l
}

func d(id, title, show string) episode.Descriptor {
	return episode.Descriptor{EpisodeID: id, Title: title, ShowTitle: show, AudioURL: "https://example.com/" + id + ".mp3"}
}

func episodeIDs(items []Favorite) []string {
	out := make([]string, len(items))
	for i, f := range items {
		out[i] = f.EpisodeID
	}
	return out
}

func TestLedger_AddRemoveToggle(t *testing.T) {
	l := newTestLedger(t, store.NewMemoryStore())

	assert.True(t, l.Add(d("a-s1-e1", "Alpha", "Show A"), "first"))
	assert.False(t, l.Add(d("a-s1-e1", "Alpha", "Show A"), "first"))
	assert.True(t, l.Contains("a-s1-e1"))

	assert.False(t, l.Toggle(d("a-s1-e1", "Alpha", "Show A"), ""))
	assert.False(t, l.Contains("a-s1-e1"))

	assert.True(t, l.Toggle(d("a-s1-e1", "Alpha", "Show A"), ""))
	assert.True(t, l.Contains("a-s1-e1"))

	assert.True(t, l.Remove("a-s1-e1"))
	assert.False(t, l.Remove("a-s1-e1"))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_ListSortAndSearch(t *testing.T) {
	l := newTestLedger(t, store.NewMemoryStore())
	l.Add(d("a-s1-e1", "beta", "Show A"), "about cats")
	l.Add(d("a-s1-e2", "Alpha", "Show A"), "")
	l.Add(d("b-s1-e1", "Gamma", "Show B"), "")

	assert.Equal(t, []string{"b-s1-e1", "a-s1-e2", "a-s1-e1"}, episodeIDs(l.List(Query{})))
	assert.Equal(t, []string{"a-s1-e1", "a-s1-e2", "b-s1-e1"}, episodeIDs(l.List(Query{Ascending: true})))
	assert.Equal(t, []string{"a-s1-e2", "a-s1-e1", "b-s1-e1"}, episodeIDs(l.List(Query{SortBy: SortByTitle, Ascending: true})))
	assert.Equal(t, []string{"b-s1-e1", "a-s1-e1", "a-s1-e2"}, episodeIDs(l.List(Query{SortBy: SortByTitle})))

	assert.Equal(t, []string{"a-s1-e1"}, episodeIDs(l.List(Query{Search: "CATS"})))
	assert.Equal(t, []string{"b-s1-e1"}, episodeIDs(l.List(Query{Search: "show b"})))
}

func TestLedger_Grouped(t *testing.T) {
	l := newTestLedger(t, store.NewMemoryStore())
	l.Add(d("a-s1-e1", "One", "Show A"), "")
	l.Add(d("b-s1-e1", "Two", "Show B"), "")
	l.Add(d("a-s1-e2", "Three", "Show A"), "")

	groups := l.Grouped(Query{Ascending: true})
	require.Len(t, groups, 2)
	assert.Equal(t, "Show A", groups[0].ShowTitle)
	assert.Equal(t, []string{"a-s1-e1", "a-s1-e2"}, episodeIDs(groups[0].Items))
	assert.Equal(t, "Show B", groups[1].ShowTitle)
}

func TestLedger_PersistsAndReloads(t *testing.T) {
	s := store.NewMemoryStore()
	l := newTestLedger(t, s)
	l.Add(d("a-s1-e1", "One", "Show A"), "desc")

	reloaded := NewLedger(s)
	require.True(t, reloaded.Contains("a-s1-e1"))

	fav := reloaded.List(Query{})[0]
	assert.Equal(t, "desc", fav.EpisodeDescription)
	assert.Equal(t, "One", fav.Descriptor().Title)
	assert.Equal(t, "https://example.com/a-s1-e1.mp3", fav.Descriptor().AudioURL)
}

func TestLedger_MalformedStoreIsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyFavorites, []byte("nope")))
	assert.Equal(t, 0, NewLedger(s).Len())
}
