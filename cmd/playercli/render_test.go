package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/podbox/internal/app/player/state"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/domain/progress"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{seconds: 0, want: "0:00"},
		{seconds: 59.9, want: "0:59"},
		{seconds: 125, want: "2:05"},
		{seconds: 3725, want: "1:02:05"},
		{seconds: -4, want: "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatClock(tt.seconds))
		})
	}
}

func TestRenderStatus(t *testing.T) {
	out := renderStatus(state.Snapshot{
		CurrentEpisode: &episode.Descriptor{EpisodeID: "10-s1-e2", Title: "Second", Season: 1, Episode: 2, ShowTitle: "zebra talk"},
		Phase:          "playing",
		CurrentTime:    65,
		Duration:       300,
		Volume:         70,
		IsRepeatActive: true,
	}, false)

	assert.Contains(t, out, "Playing")
	assert.Contains(t, out, "Second")
	assert.Contains(t, out, "zebra talk (S1 E2)")
	assert.Contains(t, out, "1:05 / 5:00")
	assert.Contains(t, out, "70%")
	assert.Contains(t, out, "repeat=on shuffle=off")
	assert.NotContains(t, out, ansiReset)

	idle := renderStatus(state.Snapshot{Phase: "idle", Volume: 70}, true)
	assert.True(t, strings.Contains(idle, ansiGray))
	assert.Contains(t, idle, "Episode:   -")
}

func TestProgressCells(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := progress.NewRecord(60, 300, false, progress.DefaultCompletionThreshold, now.Add(-2*time.Hour))

	assert.Equal(t, "20%", progressCell(r))
	assert.Equal(t, "2 hours ago", lastListened(r, now))

	done := progress.NewRecord(290, 300, false, progress.DefaultCompletionThreshold, now)
	assert.Equal(t, "done", progressCell(done))

	assert.Equal(t, "-", lastListened(progress.Record{}, now))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Title"}, [][]string{{"1", "Pilot"}, {"2"}}, []columnAlignment{alignRight, alignLeft})
	assert.Contains(t, out, "Pilot")
	assert.Contains(t, out, "ID")
	assert.Empty(t, renderTable(nil, nil, nil))
}
