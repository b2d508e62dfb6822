package episode

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	assert.Equal(t, "10716-s1-e3", ID("10716", 1, 3))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		show    string
		season  int
		episode int
		wantErr bool
	}{
		{name: "simple", id: "p1-s1-e1", show: "p1", season: 1, episode: 1},
		{name: "numeric show", id: "10716-s2-e14", show: "10716", season: 2, episode: 14},
		{name: "dashed show id", id: "my-show-s3-e7", show: "my-show", season: 3, episode: 7},
		{name: "too short", id: "p1-e1", wantErr: true},
		{name: "missing prefix", id: "p1-1-e1", wantErr: true},
		{name: "non numeric episode", id: "p1-s1-ex", wantErr: true},
		{name: "empty show", id: "-s1-e1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			show, season, ep, err := ParseID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.show, show)
			assert.Equal(t, tt.season, season)
			assert.Equal(t, tt.episode, ep)
		})
	}
}

func TestDescriptor_ShowID(t *testing.T) {
	d := Descriptor{EpisodeID: "42-s1-e2"}
	assert.Equal(t, "42", d.ShowID())

	assert.Equal(t, "", Descriptor{EpisodeID: "garbage"}.ShowID())
}

func TestIsValidAudioURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://example.com/ep1.mp3", true},
		{"https://example.com/EP1.M4A", true},
		{"https://example.com/ep1.webm?x=1", true},
		{"https://podcast-api.netlify.app/placeholder-audio.xyz", true},
		{"https://example.com/page.html", false},
		{"a.mp3", false},
		{"", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidAudioURL(tt.url))
		})
	}
}
