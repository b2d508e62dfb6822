package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		time          float64
		duration      float64
		override      bool
		wantTime      float64
		wantCompleted bool
	}{
		{name: "mid episode", time: 150, duration: 300, wantTime: 150},
		{name: "95.8 percent", time: 115, duration: 120, wantTime: 115, wantCompleted: true},
		{name: "83 percent", time: 100, duration: 120, wantTime: 100},
		{name: "exactly at threshold", time: 90, duration: 100, wantTime: 90, wantCompleted: true},
		{name: "past the end clamps", time: 400, duration: 300, wantTime: 300, wantCompleted: true},
		{name: "negative clamps", time: -5, duration: 300, wantTime: 0},
		{name: "override", time: 10, duration: 300, override: true, wantTime: 10, wantCompleted: true},
		{name: "unknown duration", time: 12, duration: 0, wantTime: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(tt.time, tt.duration, tt.override, DefaultCompletionThreshold, now)
			assert.Equal(t, tt.wantTime, r.CurrentTime)
			assert.Equal(t, tt.wantCompleted, r.Completed)
			assert.Equal(t, now, r.LastListenedAt())
		})
	}
}

func TestRecord_Percent(t *testing.T) {
	assert.InDelta(t, 50.0, Record{CurrentTime: 150, Duration: 300}.Percent(), 0.001)
	assert.Equal(t, 0.0, Record{CurrentTime: 150}.Percent())
}

func TestRecord_ResumePoint(t *testing.T) {
	assert.Equal(t, 42.0, Record{CurrentTime: 42, Duration: 120}.ResumePoint())
	assert.Equal(t, 0.0, Record{CurrentTime: 115, Duration: 120, Completed: true}.ResumePoint())
}

func TestRecord_LastListenedAt_Malformed(t *testing.T) {
	assert.True(t, Record{LastListened: "yesterday"}.LastListenedAt().IsZero())
}
