// Package playback provides the transport engine that owns the single media backend.
package playback

// State represents the transport state.
type State int

const (
	StateEmpty   State = iota // Nothing loaded
	StateLoading              // Load requested, awaiting metadata
	StatePaused               // Loaded and positioned, not playing
	StatePlaying              // Media is playing
	StateEnded                // Media reached its end
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// HasMedia reports whether metadata for the current source is known.
func (s State) HasMedia() bool {
	return s == StatePaused || s == StatePlaying || s == StateEnded
}
