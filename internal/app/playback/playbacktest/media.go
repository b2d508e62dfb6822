// Package playbacktest provides a scripted Media backend for tests.
package playbacktest

import (
	"fmt"
	"sync"

	"github.com/osa030/podbox/internal/app/playback"
)

// Media is an in-memory playback.Media that records every call.
// Tests drive it by injecting backend events.
type Media struct {
	mu sync.Mutex

	calls      []string
	generation uint64
	url        string
	seek       uint64
	position   float64
	volume     float64
	playing    bool
	playErr    error
	closed     bool

	events chan playback.MediaEvent
}

// NewMedia creates a fake backend.
func NewMedia() *Media {
	return &Media{
		volume: 1,
		events: make(chan playback.MediaEvent, 64),
	}
}

// Load implements playback.Media.
func (m *Media) Load(generation uint64, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "load "+url)
	m.generation = generation
	m.url = url
	m.position = 0
	m.playing = false
}

// Play implements playback.Media.
func (m *Media) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "play")
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	return nil
}

// Pause implements playback.Media.
func (m *Media) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
	m.playing = false
}

// Seek implements playback.Media.
func (m *Media) Seek(seq uint64, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("seek %g", seconds))
	m.seek = seq
	m.position = seconds
}

// SetVolume implements playback.Media.
func (m *Media) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

// Events implements playback.Media.
func (m *Media) Events() <-chan playback.MediaEvent {
	return m.events
}

// Close implements playback.Media.
func (m *Media) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// RejectPlay makes subsequent Play calls fail with err. A nil err accepts them again.
func (m *Media) RejectPlay(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Metadata raises MediaMetadata for the current load.
func (m *Media) Metadata(duration float64) {
	m.Emit(playback.MediaEvent{Type: playback.MediaMetadata, Generation: m.Generation(), Duration: duration})
}

// Advance raises MediaTime for the current load and seek.
func (m *Media) Advance(t float64) {
	m.mu.Lock()
	m.position = t
	ev := playback.MediaEvent{Type: playback.MediaTime, Generation: m.generation, Seek: m.seek, Time: t}
	m.mu.Unlock()
	m.Emit(ev)
}

// SetPosition moves the position without raising an event, as a backend
// does between position reports.
func (m *Media) SetPosition(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = t
}

// End raises MediaEnded for the current load.
func (m *Media) End() {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	m.Emit(playback.MediaEvent{Type: playback.MediaEnded, Generation: m.Generation()})
}

// Fail raises MediaError for the current load.
func (m *Media) Fail(err error) {
	m.Emit(playback.MediaEvent{Type: playback.MediaError, Generation: m.Generation(), Err: err})
}

// Emit raises an arbitrary event.
func (m *Media) Emit(ev playback.MediaEvent) {
	m.events <- ev
}

// Calls returns the recorded calls in order.
func (m *Media) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// ResetCalls forgets recorded calls.
func (m *Media) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Count returns how many recorded calls equal call.
func (m *Media) Count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Generation returns the generation of the last load.
func (m *Media) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// URL returns the last loaded URL.
func (m *Media) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Position implements playback.Media. It returns the last seek or advance position.
func (m *Media) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Volume returns the last applied volume in [0, 1].
func (m *Media) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Playing reports whether the fake is playing.
func (m *Media) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}
