package recent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/store"
)

func desc(n int) episode.Descriptor {
	return episode.Descriptor{
		EpisodeID: episode.ID("show", 1, n),
		AudioURL:  fmt.Sprintf("https://example.com/%d.mp3", n),
		Title:     fmt.Sprintf("Episode %d", n),
		Season:    1,
		Episode:   n,
	}
}

func ids(items []episode.Descriptor) []string {
	out := make([]string, len(items))
	for i, d := range items {
		out[i] = d.EpisodeID
	}
	return out
}

func TestLedger_Track(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), DefaultCapacity)

	l.Track(desc(1))
	l.Track(desc(2))
	l.Track(desc(3))
	assert.Equal(t, []string{"show-s1-e3", "show-s1-e2", "show-s1-e1"}, ids(l.List()))

	// Replaying moves the episode to the front without duplicating it.
	l.Track(desc(1))
	assert.Equal(t, []string{"show-s1-e1", "show-s1-e3", "show-s1-e2"}, ids(l.List()))
	assert.Equal(t, 3, l.Len())
}

func TestLedger_Capacity(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), DefaultCapacity)

	for i := 1; i <= 60; i++ {
		l.Track(desc(i))
	}

	items := l.List()
	require.Len(t, items, 50)
	assert.Equal(t, "show-s1-e60", items[0].EpisodeID)
	assert.Equal(t, "show-s1-e11", items[49].EpisodeID)
}

func TestLedger_PersistsAndReloads(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLedger(s, DefaultCapacity)
	l.Track(desc(1))
	l.Track(desc(2))

	reloaded := NewLedger(s, DefaultCapacity)
	assert.Equal(t, []string{"show-s1-e2", "show-s1-e1"}, ids(reloaded.List()))
}

func TestLedger_LoadDropsDuplicates(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, store.SaveJSON(s, store.KeyRecentlyPlayed, []episode.Descriptor{desc(1), desc(2), desc(1)}))

	l := NewLedger(s, DefaultCapacity)
	assert.Equal(t, []string{"show-s1-e1", "show-s1-e2"}, ids(l.List()))
}

func TestLedger_MalformedStoreIsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyRecentlyPlayed, []byte(`{"oops":`)))

	l := NewLedger(s, DefaultCapacity)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_Clear(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLedger(s, DefaultCapacity)
	l.Track(desc(1))

	l.Clear()

	assert.Empty(t, l.List())
	_, ok, err := s.Get(store.KeyRecentlyPlayed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_Top(t *testing.T) {
	l := NewLedger(store.NewMemoryStore(), DefaultCapacity)
	for i := 1; i <= 5; i++ {
		l.Track(desc(i))
	}
	assert.Equal(t, []string{"show-s1-e5", "show-s1-e4", "show-s1-e3"}, ids(l.Top(3)))
	assert.Len(t, l.Top(10), 5)
}
