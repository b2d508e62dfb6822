// Package episode provides the Episode domain entity.
package episode

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidID is returned when an episode ID does not match <showId>-s<season>-e<episode>.
var ErrInvalidID = errors.New("invalid episode id")

// CatalogHost is the host of the catalog API. Audio served from it is always accepted.
const CatalogHost = "podcast-api.netlify.app"

var audioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".webm"}

// Descriptor identifies a playable episode and the media behind it.
// Descriptors are values; two descriptors are the same episode when their IDs match.
type Descriptor struct {
	EpisodeID string `json:"episodeId" mapstructure:"episodeId"`
	AudioURL  string `json:"audioUrl" mapstructure:"audioUrl"`
	Title     string `json:"title" mapstructure:"title"`
	Season    int    `json:"season" mapstructure:"season"`
	Episode   int    `json:"episode" mapstructure:"episode"`
	ShowTitle string `json:"showTitle" mapstructure:"showTitle"`
	ShowImage string `json:"showImage" mapstructure:"showImage"`
}

// ID builds an episode ID from its parts.
func ID(showID string, season, episode int) string {
	return fmt.Sprintf("%s-s%d-e%d", showID, season, episode)
}

// ParseID splits an episode ID into show ID, season and episode number.
// Show IDs may themselves contain dashes; the last two segments are taken as season and episode.
func ParseID(id string) (showID string, season, episode int, err error) {
	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return "", 0, 0, errors.Wrapf(ErrInvalidID, "%q", id)
	}

	epPart := parts[len(parts)-1]
	seasonPart := parts[len(parts)-2]
	if !strings.HasPrefix(seasonPart, "s") || !strings.HasPrefix(epPart, "e") {
		return "", 0, 0, errors.Wrapf(ErrInvalidID, "%q", id)
	}

	season, err = strconv.Atoi(seasonPart[1:])
	if err != nil {
		return "", 0, 0, errors.Wrapf(ErrInvalidID, "%q: season", id)
	}
	episode, err = strconv.Atoi(epPart[1:])
	if err != nil {
		return "", 0, 0, errors.Wrapf(ErrInvalidID, "%q: episode", id)
	}

	showID = strings.Join(parts[:len(parts)-2], "-")
	if showID == "" {
		return "", 0, 0, errors.Wrapf(ErrInvalidID, "%q: empty show id", id)
	}
	return showID, season, episode, nil
}

// ShowID returns the show part of the descriptor's episode ID, or "" if the ID is malformed.
func (d Descriptor) ShowID() string {
	showID, _, _, err := ParseID(d.EpisodeID)
	if err != nil {
		return ""
	}
	return showID
}

// IsZero reports whether the descriptor is empty.
func (d Descriptor) IsZero() bool {
	return d.EpisodeID == ""
}

// HasValidAudio reports whether AudioURL looks playable.
func (d Descriptor) HasValidAudio() bool {
	return IsValidAudioURL(d.AudioURL)
}

// IsValidAudioURL accepts absolute URLs whose path has a known audio extension,
// or any URL served from the catalog host.
func IsValidAudioURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	if strings.Contains(u.Hostname(), CatalogHost) {
		return true
	}

	path := strings.ToLower(u.Path)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
