// Package progress provides the per-episode playback progress record.
package progress

import "time"

// DefaultCompletionThreshold is the fraction of an episode after which it counts as finished.
const DefaultCompletionThreshold = 0.90

// Record is the resume and completion state of one episode.
type Record struct {
	CurrentTime  float64 `json:"currentTime"` // seconds
	Duration     float64 `json:"duration"`    // seconds
	Completed    bool    `json:"completed"`
	LastListened string  `json:"lastListened"` // RFC 3339
}

// NewRecord builds a record with currentTime clamped to [0, duration].
// The record is completed when override is set or the clamped time reaches threshold*duration.
func NewRecord(currentTime, duration float64, override bool, threshold float64, now time.Time) Record {
	if duration < 0 {
		duration = 0
	}
	t := Clamp(currentTime, duration)
	return Record{
		CurrentTime:  t,
		Duration:     duration,
		Completed:    override || IsComplete(t, duration, threshold),
		LastListened: now.UTC().Format(time.RFC3339Nano),
	}
}

// Clamp bounds t to [0, duration]. A non-positive duration only bounds from below.
func Clamp(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

// IsComplete reports whether t has reached the completion threshold of duration.
func IsComplete(t, duration, threshold float64) bool {
	if duration <= 0 {
		return false
	}
	return t >= threshold*duration
}

// Percent returns how far into the episode the record is, 0..100.
func (r Record) Percent() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return r.CurrentTime / r.Duration * 100
}

// ResumePoint returns where playback should restart, or 0 when the episode is finished.
func (r Record) ResumePoint() float64 {
	if r.Completed {
		return 0
	}
	return r.CurrentTime
}

// LastListenedAt parses LastListened. The zero time is returned for malformed values.
func (r Record) LastListenedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.LastListened)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SameProgress reports whether two records describe the same position, ignoring LastListened.
func (r Record) SameProgress(o Record) bool {
	return r.CurrentTime == o.CurrentTime && r.Duration == o.Duration && r.Completed == o.Completed
}
