package playback

// MediaEventType represents an event raised by a media backend.
type MediaEventType int

const (
	MediaMetadata MediaEventType = iota
	MediaTime
	MediaEnded
	MediaError
)

// String returns the string representation of the media event type.
func (t MediaEventType) String() string {
	switch t {
	case MediaMetadata:
		return "metadata"
	case MediaTime:
		return "time"
	case MediaEnded:
		return "ended"
	case MediaError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaEvent is raised by a backend and tagged with the generation passed to Load.
// MediaTime events also carry the sequence of the last Seek applied before the
// position was read.
type MediaEvent struct {
	Type       MediaEventType
	Generation uint64
	Seek       uint64
	Time       float64
	Duration   float64
	Err        error
}

// Media is a single playable audio resource.
//
// Load is asynchronous: the backend replaces its current source and later
// raises MediaMetadata or MediaError carrying the same generation. Play may
// be rejected; the backend stays paused in that case. Seek stores seq and tags
// later MediaTime events with it. Position reports the live position, which
// is frozen while paused.
type Media interface {
	Load(generation uint64, url string)
	Play() error
	Pause()
	Seek(seq uint64, seconds float64)
	Position() float64
	SetVolume(level float64)
	Events() <-chan MediaEvent
	Close() error
}
