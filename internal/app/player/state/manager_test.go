package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/podbox/internal/domain/episode"
)

func TestManager_Lifecycle(t *testing.T) {
	m := New(70)
	assert.Equal(t, PhaseIdle, m.GetPhase())
	_, ok := m.GetEpisode()
	assert.False(t, ok)

	m.SetEpisode(episode.Descriptor{EpisodeID: "p1-s1-e1"})
	m.SetPhase(PhaseLoading)
	assert.False(t, m.IsPlaying())

	m.SetPosition(12, 300)
	m.SetPhase(PhasePlaying)
	assert.True(t, m.IsPlaying())

	m.SetPhase(PhasePaused)
	assert.False(t, m.IsPlaying())

	// A new episode clears the live position.
	m.SetEpisode(episode.Descriptor{EpisodeID: "p1-s1-e2"})
	assert.Equal(t, 0.0, m.GetCurrentTime())
	assert.Equal(t, 0.0, m.GetDuration())
}

func TestManager_Toggles(t *testing.T) {
	m := New(70)
	assert.True(t, m.ToggleRepeat())
	assert.True(t, m.IsRepeatActive())
	assert.False(t, m.ToggleRepeat())
	assert.True(t, m.ToggleShuffle())
	assert.False(t, m.ToggleShuffle())
}

func TestManager_SnapshotIsACopy(t *testing.T) {
	m := New(40)
	m.SetEpisode(episode.Descriptor{EpisodeID: "p1-s1-e1", Title: "One"})
	m.SetPosition(5, 10)
	m.SetPhase(PhasePlaying)

	snap := m.Snapshot()
	snap.CurrentEpisode.Title = "changed"

	got, ok := m.GetEpisode()
	assert.True(t, ok)
	assert.Equal(t, "One", got.Title)
	assert.Equal(t, "playing", snap.Phase)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 40, snap.Volume)
	assert.Equal(t, 5.0, snap.CurrentTime)
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseLoading, "loading"},
		{PhasePlaying, "playing"},
		{PhasePaused, "paused"},
		{PhaseCompleted, "completed"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.String())
	}
}
