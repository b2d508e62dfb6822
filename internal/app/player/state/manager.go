package state

import (
	"sync"

	"github.com/osa030/podbox/internal/domain/episode"
)

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	CurrentEpisode  *episode.Descriptor `json:"currentEpisode"`
	Phase           string              `json:"phase"`
	IsPlaying       bool                `json:"isPlaying"`
	CurrentTime     float64             `json:"currentTime"`
	Duration        float64             `json:"duration"`
	Volume          int                 `json:"volume"`
	IsRepeatActive  bool                `json:"isRepeatActive"`
	IsShuffleActive bool                `json:"isShuffleActive"`
}

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	episode     *episode.Descriptor
	phase       Phase
	playing     bool
	currentTime float64
	duration    float64
	volume      int
	repeat      bool
	shuffle     bool
}

// New creates a new state manager with the given volume.
func New(volume int) *Manager {
	return &Manager{
		phase:  PhaseIdle,
		volume: volume,
	}
}

// GetPhase returns the current phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetPhase sets the phase. isPlaying follows the phase.
func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
	m.playing = p == PhasePlaying
}

// GetEpisode returns the current episode.
func (m *Manager) GetEpisode() (episode.Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.episode == nil {
		return episode.Descriptor{}, false
	}
	return *m.episode, true
}

// SetEpisode makes d the current episode and clears the live position.
func (m *Manager) SetEpisode(d episode.Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episode = &d
	m.playing = false
	m.currentTime = 0
	m.duration = 0
}

// IsPlaying returns true if the episode is playing.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// SetPosition sets the live position and duration.
func (m *Manager) SetPosition(currentTime, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = currentTime
	m.duration = duration
}

// SetCurrentTime sets the live position.
func (m *Manager) SetCurrentTime(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// GetCurrentTime returns the live position.
func (m *Manager) GetCurrentTime() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTime
}

// GetDuration returns the duration of the current episode.
func (m *Manager) GetDuration() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.duration
}

// GetVolume returns the volume.
func (m *Manager) GetVolume() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// SetVolume sets the volume.
func (m *Manager) SetVolume(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// ToggleRepeat flips the repeat flag and returns the new value.
func (m *Manager) ToggleRepeat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = !m.repeat
	return m.repeat
}

// IsRepeatActive returns the repeat flag.
func (m *Manager) IsRepeatActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repeat
}

// ToggleShuffle flips the shuffle flag and returns the new value.
func (m *Manager) ToggleShuffle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shuffle = !m.shuffle
	return m.shuffle
}

// Snapshot returns a copy of the state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ep *episode.Descriptor
	if m.episode != nil {
		d := *m.episode
		ep = &d
	}
	return Snapshot{
		CurrentEpisode:  ep,
		Phase:           m.phase.String(),
		IsPlaying:       m.playing,
		CurrentTime:     m.currentTime,
		Duration:        m.duration,
		Volume:          m.volume,
		IsRepeatActive:  m.repeat,
		IsShuffleActive: m.shuffle,
	}
}
