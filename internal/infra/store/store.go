// Package store provides the durable key/value store that mirrors player state.
package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Keys under which player state is persisted.
const (
	KeyVolume         = "audioVolume"
	KeyProgress       = "playbackHistory"
	KeyCurrentEpisode = "currentEpisode"
	KeyRecentlyPlayed = "recentlyPlayedEpisodes"
	KeyFavorites      = "podcastFavorites"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a string-keyed blob store.
// Get reports found=false for missing keys; Remove of a missing key is not an error.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Close() error
}

// LoadJSON decodes the blob at key into v.
// Missing keys, read failures and malformed blobs all report false; v is left untouched.
func LoadJSON(s Store, key string, v any) bool {
	data, ok, err := s.Get(key)
	if err != nil {
		zlog.Error().Msgf("store: failed to read key=%s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		zlog.Warn().Msgf("store: ignoring malformed value: key=%s err=%v", key, err)
		return false
	}
	return true
}

// SaveJSON encodes v and writes it at key.
func SaveJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	if err := s.Set(key, data); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}
