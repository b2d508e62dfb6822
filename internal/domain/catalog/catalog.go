// Package catalog provides the podcast catalog domain entities.
package catalog

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/podbox/internal/domain/episode"
)

var (
	ErrSeasonNotFound  = errors.New("season not found")
	ErrEpisodeNotFound = errors.New("episode not found")
)

// Preview is the summary of a show returned by the catalog listing.
type Preview struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Seasons     int       `json:"seasons"`
	Image       string    `json:"image"`
	Genres      []int     `json:"genres"`
	Updated     time.Time `json:"updated"`
}

// Show is a podcast with all of its seasons.
type Show struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Genres      []string  `json:"genres"`
	Updated     time.Time `json:"updated"`
	Seasons     []Season  `json:"seasons"`
}

// Season is one season of a show.
type Season struct {
	Season   int       `json:"season"`
	Title    string    `json:"title"`
	Image    string    `json:"image"`
	Episodes []Episode `json:"episodes"`
}

// Episode is one episode as the catalog describes it.
type Episode struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Episode     int    `json:"episode"`
	File        string `json:"file"`
}

// Genre groups shows by ID.
type Genre struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Shows       []string `json:"shows"`
}

// FindSeason returns the season with the given number.
func (s *Show) FindSeason(number int) (*Season, error) {
	for i := range s.Seasons {
		if s.Seasons[i].Season == number {
			return &s.Seasons[i], nil
		}
	}
	return nil, errors.Wrapf(ErrSeasonNotFound, "show %s season %d", s.ID, number)
}

// FindEpisode returns the episode with the given season and episode numbers.
func (s *Show) FindEpisode(seasonNumber, episodeNumber int) (*Season, *Episode, error) {
	season, err := s.FindSeason(seasonNumber)
	if err != nil {
		return nil, nil, err
	}
	for i := range season.Episodes {
		if season.Episodes[i].Episode == episodeNumber {
			return season, &season.Episodes[i], nil
		}
	}
	return nil, nil, errors.Wrapf(ErrEpisodeNotFound, "show %s season %d episode %d", s.ID, seasonNumber, episodeNumber)
}

// Descriptor builds the playable descriptor for an episode of this show.
func (s *Show) Descriptor(seasonNumber, episodeNumber int) (episode.Descriptor, error) {
	season, ep, err := s.FindEpisode(seasonNumber, episodeNumber)
	if err != nil {
		return episode.Descriptor{}, err
	}
	image := season.Image
	if image == "" {
		image = s.Image
	}
	return episode.Descriptor{
		EpisodeID: episode.ID(s.ID, seasonNumber, episodeNumber),
		AudioURL:  ep.File,
		Title:     ep.Title,
		Season:    seasonNumber,
		Episode:   episodeNumber,
		ShowTitle: s.Title,
		ShowImage: image,
	}, nil
}

// EpisodeCount returns the number of episodes across all seasons.
func (s *Show) EpisodeCount() int {
	n := 0
	for _, season := range s.Seasons {
		n += len(season.Episodes)
	}
	return n
}

// HasGenre reports whether the preview is tagged with the genre.
func (p *Preview) HasGenre(genreID int) bool {
	for _, g := range p.Genres {
		if g == genreID {
			return true
		}
	}
	return false
}

// ContainsShow reports whether the genre lists the show.
func (g *Genre) ContainsShow(showID string) bool {
	for _, id := range g.Shows {
		if id == showID {
			return true
		}
	}
	return false
}

// GenreKey formats a genre ID the way the catalog encodes it in URLs.
func GenreKey(id int) string {
	return strconv.Itoa(id)
}
