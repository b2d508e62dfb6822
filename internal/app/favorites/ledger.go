// Package favorites provides the user's saved episodes.
package favorites

import (
	"sort"
	"strings"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/store"
)

// Favorite is a saved episode.
type Favorite struct {
	EpisodeID          string    `json:"episodeId"`
	AudioURL           string    `json:"audioUrl"`
	EpisodeTitle       string    `json:"episodeTitle"`
	EpisodeDescription string    `json:"episodeDescription"`
	SeasonNumber       int       `json:"seasonNumber"`
	EpisodeNumber      int       `json:"episodeNumber"`
	ShowTitle          string    `json:"showTitle"`
	ShowImage          string    `json:"showImage"`
	DateAdded          time.Time `json:"dateAdded"`
}

// Descriptor converts the favorite to a playable descriptor.
func (f Favorite) Descriptor() episode.Descriptor {
	return episode.Descriptor{
		EpisodeID: f.EpisodeID,
		AudioURL:  f.AudioURL,
		Title:     f.EpisodeTitle,
		Season:    f.SeasonNumber,
		Episode:   f.EpisodeNumber,
		ShowTitle: f.ShowTitle,
		ShowImage: f.ShowImage,
	}
}

// FromDescriptor builds a favorite for d.
func FromDescriptor(d episode.Descriptor, description string, addedAt time.Time) Favorite {
	return Favorite{
		EpisodeID:          d.EpisodeID,
		AudioURL:           d.AudioURL,
		EpisodeTitle:       d.Title,
		EpisodeDescription: description,
		SeasonNumber:       d.Season,
		EpisodeNumber:      d.Episode,
		ShowTitle:          d.ShowTitle,
		ShowImage:          d.ShowImage,
		DateAdded:          addedAt,
	}
}

// SortBy selects the favorites ordering.
type SortBy string

const (
	SortByDateAdded SortBy = "dateAdded"
	SortByTitle     SortBy = "title"
)

// Query narrows and orders favorites.
type Query struct {
	Search    string
	SortBy    SortBy
	Ascending bool
}

// Group is the favorites of one show.
type Group struct {
	ShowTitle string     `json:"showTitle"`
	Items     []Favorite `json:"items"`
}

// Ledger holds favorites keyed by episode ID.
type Ledger struct {
	mu    sync.RWMutex
	store store.Store
	items []Favorite
	now   func() time.Time
}

// NewLedger creates a ledger and loads persisted favorites from s.
func NewLedger(s store.Store) *Ledger {
	l := &Ledger{
		store: s,
		items: make([]Favorite, 0),
		now:   time.Now,
	}

	var loaded []Favorite
	if store.LoadJSON(s, store.KeyFavorites, &loaded) {
		seen := make(map[string]bool, len(loaded))
		for _, f := range loaded {
			if f.EpisodeID == "" || seen[f.EpisodeID] {
				continue
			}
			seen[f.EpisodeID] = true
			l.items = append(l.items, f)
		}
		zlog.Info().Msgf("favorites: loaded favorites: count=%d", len(l.items))
	}
	return l
}

// Add saves d as a favorite. Adding an existing favorite is a no-op and returns false.
func (l *Ledger) Add(d episode.Descriptor, description string) bool {
	l.mu.Lock()
	if l.indexLocked(d.EpisodeID) >= 0 {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items, FromDescriptor(d, description, l.now().UTC()))
	snapshot := l.copyLocked()
	l.mu.Unlock()

	l.persist(snapshot)
	return true
}

// Remove deletes the favorite with episodeID. It returns false if none existed.
func (l *Ledger) Remove(episodeID string) bool {
	l.mu.Lock()
	i := l.indexLocked(episodeID)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	snapshot := l.copyLocked()
	l.mu.Unlock()

	l.persist(snapshot)
	return true
}

// Toggle adds d if missing, removes it otherwise. It reports whether d is now a favorite.
func (l *Ledger) Toggle(d episode.Descriptor, description string) bool {
	if l.Remove(d.EpisodeID) {
		return false
	}
	l.Add(d, description)
	return true
}

// Contains reports whether episodeID is a favorite.
func (l *Ledger) Contains(episodeID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexLocked(episodeID) >= 0
}

// Len returns the number of favorites.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// List returns favorites matching q in the requested order.
func (l *Ledger) List(q Query) []Favorite {
	l.mu.RLock()
	items := l.copyLocked()
	l.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Favorite, 0, len(items))
	for _, f := range items {
		if term == "" ||
			strings.Contains(strings.ToLower(f.EpisodeTitle), term) ||
			strings.Contains(strings.ToLower(f.ShowTitle), term) ||
			strings.Contains(strings.ToLower(f.EpisodeDescription), term) {
			out = append(out, f)
		}
	}

	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.SortBy == SortByTitle {
			c := col.CompareString(a.EpisodeTitle, b.EpisodeTitle)
			if q.Ascending {
				return c < 0
			}
			return c > 0
		}
		if q.Ascending {
			return a.DateAdded.Before(b.DateAdded)
		}
		return a.DateAdded.After(b.DateAdded)
	})
	return out
}

// Grouped returns List(q) grouped by show title, shows in order of first appearance.
func (l *Ledger) Grouped(q Query) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, f := range l.List(q) {
		i, ok := index[f.ShowTitle]
		if !ok {
			i = len(groups)
			index[f.ShowTitle] = i
			groups = append(groups, Group{ShowTitle: f.ShowTitle})
		}
		groups[i].Items = append(groups[i].Items, f)
	}
	return groups
}

func (l *Ledger) indexLocked(episodeID string) int {
	for i, f := range l.items {
		if f.EpisodeID == episodeID {
			return i
		}
	}
	return -1
}

func (l *Ledger) copyLocked() []Favorite {
	out := make([]Favorite, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) persist(items []Favorite) {
	if err := store.SaveJSON(l.store, store.KeyFavorites, items); err != nil {
		zlog.Error().Msgf("favorites: failed to save favorites: %v", err)
	}
}
