package progress

import "math"

// Throttle limits time-driven saves to one per interval of media time.
// Discrete actions (pause, seek, end) save unconditionally and call Mark.
type Throttle struct {
	interval  float64
	episodeID string
	lastSaved float64
	primed    bool
}

// NewThrottle creates a throttle with the given interval in seconds of media time.
func NewThrottle(interval float64) *Throttle {
	if interval <= 0 {
		interval = 1
	}
	return &Throttle{interval: interval}
}

// Due reports whether a time update at mediaTime should be persisted.
func (t *Throttle) Due(episodeID string, mediaTime float64) bool {
	if !t.primed || t.episodeID != episodeID {
		return true
	}
	return math.Abs(mediaTime-t.lastSaved) >= t.interval
}

// Mark records that progress for episodeID was saved at mediaTime.
func (t *Throttle) Mark(episodeID string, mediaTime float64) {
	t.episodeID = episodeID
	t.lastSaved = mediaTime
	t.primed = true
}

// Reset forgets the last save so the next update is always due.
func (t *Throttle) Reset() {
	t.episodeID = ""
	t.lastSaved = 0
	t.primed = false
}
