package playback

// EventType represents a transport event type.
type EventType int

const (
	EventMetadataReady EventType = iota // Duration of the loaded source is known
	EventTimeAdvanced                   // Playback position moved
	EventEnded                          // Media reached its natural end
	EventError                          // Load or decode failed
	EventRestart                        // Repeat delay elapsed after an end
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventMetadataReady:
		return "metadata_ready"
	case EventTimeAdvanced:
		return "time_advanced"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// Event is emitted by the engine for the load identified by Generation.
type Event struct {
	Type       EventType
	Generation uint64
	Seek       uint64  // Seek sequence the position was read under; set for EventTimeAdvanced
	Time       float64 // Seconds; set for EventTimeAdvanced
	Duration   float64 // Seconds; set for EventMetadataReady
	Err        error   // Set for EventError
}
