// Package recent provides the bounded most-recently-played episode list.
package recent

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/store"
)

// DefaultCapacity is the number of episodes kept in the list.
const DefaultCapacity = 50

// Ledger is a most-recent-first list of episodes without duplicate IDs.
type Ledger struct {
	mu       sync.RWMutex
	store    store.Store
	items    []episode.Descriptor
	capacity int
}

// NewLedger creates a ledger and loads the persisted list from s.
func NewLedger(s store.Store, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	l := &Ledger{
		store:    s,
		items:    make([]episode.Descriptor, 0),
		capacity: capacity,
	}

	var loaded []episode.Descriptor
	if store.LoadJSON(s, store.KeyRecentlyPlayed, &loaded) {
		l.items = dedupe(loaded, capacity)
		zlog.Info().Msgf("recent: loaded recently played: episodes=%d", len(l.items))
	}
	return l
}

// Track moves d to the front, dropping any older entry with the same ID and
// trimming the list to capacity.
func (l *Ledger) Track(d episode.Descriptor) {
	l.mu.Lock()
	items := make([]episode.Descriptor, 0, len(l.items)+1)
	items = append(items, d)
	for _, it := range l.items {
		if it.EpisodeID != d.EpisodeID {
			items = append(items, it)
		}
	}
	if len(items) > l.capacity {
		items = items[:l.capacity]
	}
	l.items = items
	snapshot := l.copyLocked()
	l.mu.Unlock()

	zlog.Debug().Msgf("recent: tracked episode: episode_id=%s size=%d", d.EpisodeID, len(snapshot))
	if err := store.SaveJSON(l.store, store.KeyRecentlyPlayed, snapshot); err != nil {
		zlog.Error().Msgf("recent: failed to save recently played: %v", err)
	}
}

// List returns a copy of the list, most recent first.
func (l *Ledger) List() []episode.Descriptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyLocked()
}

// Top returns at most n entries from the front of the list.
func (l *Ledger) Top(n int) []episode.Descriptor {
	items := l.List()
	if n >= 0 && n < len(items) {
		items = items[:n]
	}
	return items
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Clear empties the list and removes its durable mirror.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.items = make([]episode.Descriptor, 0)
	l.mu.Unlock()

	if err := l.store.Remove(store.KeyRecentlyPlayed); err != nil {
		zlog.Error().Msgf("recent: failed to remove recently played: %v", err)
	}
}

func (l *Ledger) copyLocked() []episode.Descriptor {
	out := make([]episode.Descriptor, len(l.items))
	copy(out, l.items)
	return out
}

// dedupe keeps the first occurrence of each ID, up to capacity entries.
func dedupe(items []episode.Descriptor, capacity int) []episode.Descriptor {
	seen := make(map[string]bool, len(items))
	out := make([]episode.Descriptor, 0, len(items))
	for _, it := range items {
		if it.EpisodeID == "" || seen[it.EpisodeID] {
			continue
		}
		seen[it.EpisodeID] = true
		out = append(out, it)
		if len(out) == capacity {
			break
		}
	}
	return out
}
