// Package state provides the playback session state.
package state

// Phase represents the player lifecycle phase.
type Phase int

const (
	PhaseIdle      Phase = iota // No current episode
	PhaseLoading                // Load requested, awaiting metadata
	PhasePlaying                // Episode is playing
	PhasePaused                 // Episode is paused or not yet loaded
	PhaseCompleted              // Episode reached its end
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
