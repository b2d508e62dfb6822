package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNotReady     = errors.New("media not ready")
	ErrPlayRejected = errors.New("play rejected")
	ErrClosed       = errors.New("engine closed")
)

// Config holds engine configuration.
type Config struct {
	RepeatDelay time.Duration // Delay between an end and the repeat restart
}

// Engine wraps one Media backend and exposes transport primitives.
// Events from a superseded load are dropped.
type Engine struct {
	mu sync.RWMutex

	media Media

	// Current source
	generation  uint64
	url         string
	state       State
	duration    float64
	currentTime float64
	seekSeq     uint64 // Bumped by every backend seek; older position reports are stale

	volume int
	repeat bool

	// Timer
	restartCancel func() // Cancel function for the pending repeat restart
	restartSeq    uint64

	// Configuration
	config Config

	// Events
	eventCh   chan Event
	restartCh chan uint64 // Sequence numbers of fired restart timers

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewEngine creates an engine that owns media and starts consuming its events.
func NewEngine(media Media, config Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		media:     media,
		state:     StateEmpty,
		volume:    100,
		config:    config,
		eventCh:   make(chan Event, 64),
		restartCh: make(chan uint64, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go e.pump()
	return e
}

// Events returns the event channel. It is closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// Load binds a new source and returns its generation.
// The previous position is discarded and a pending repeat restart is cancelled.
func (e *Engine) Load(url string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelRestartLocked()

	e.generation++
	e.url = url
	e.state = StateLoading
	e.duration = 0
	e.currentTime = 0

	zlog.Debug().Msgf("playback: loading source: generation=%d url=%s", e.generation, url)
	e.media.Load(e.generation, url)
	return e.generation
}

// Play starts playback of the loaded source.
// Playing an ended source restarts it from the beginning.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.state.HasMedia() {
		return ErrNotReady
	}
	if e.state == StatePlaying {
		return nil
	}

	if e.state == StateEnded {
		e.cancelRestartLocked()
		e.seekMediaLocked(0)
		e.currentTime = 0
	}

	if err := e.media.Play(); err != nil {
		zlog.Warn().Msgf("playback: play rejected: generation=%d err=%v", e.generation, err)
		if e.state != StateEnded {
			e.state = StatePaused
		}
		return errors.Wrapf(ErrPlayRejected, "media refused to play: %v", err)
	}

	e.state = StatePlaying
	return nil
}

// Pause stops playback immediately, preserving the position the backend froze at.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateEmpty || e.closed {
		return
	}

	e.media.Pause()
	if e.state == StatePlaying {
		e.currentTime = clamp(e.media.Position(), 0, e.duration)
		e.state = StatePaused
	}
}

// Seek moves the playback position, clamped to [0, duration].
// It returns the applied position.
func (e *Engine) Seek(seconds float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.HasMedia() {
		return 0, ErrNotReady
	}

	t := clamp(seconds, 0, e.duration)
	e.seekMediaLocked(t)
	e.currentTime = t
	if e.state == StateEnded && t < e.duration {
		e.cancelRestartLocked()
		e.state = StatePaused
	}
	return t, nil
}

// Stop pauses playback and rewinds to the beginning.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelRestartLocked()
	if e.state == StateEmpty || e.closed {
		return
	}

	e.media.Pause()
	if e.state.HasMedia() {
		e.seekMediaLocked(0)
		e.state = StatePaused
	}
	e.currentTime = 0
}

// SetVolume clamps level to [0, 100], applies it to the backend and returns it.
func (e *Engine) SetVolume(level int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	e.volume = level
	e.media.SetVolume(float64(level) / 100)
	return level
}

// Volume returns the current volume in [0, 100].
func (e *Engine) Volume() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.volume
}

// SetRepeat enables or disables the restart after an end.
// Disabling cancels a pending restart.
func (e *Engine) SetRepeat(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = on
	if !on {
		e.cancelRestartLocked()
	}
}

// CancelRestart cancels a pending repeat restart, if any.
func (e *Engine) CancelRestart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRestartLocked()
}

// RestartPending reports whether a repeat restart is scheduled.
func (e *Engine) RestartPending() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.restartCancel != nil
}

// GetState returns the current transport state.
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Generation returns the generation of the current source.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// CurrentTime returns the playback position in seconds. While playing it
// asks the backend, so it does not lag behind the last position report.
func (e *Engine) CurrentTime() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == StatePlaying {
		return clamp(e.media.Position(), 0, e.duration)
	}
	return e.currentTime
}

// SeekSeq returns the sequence of the last backend seek.
// Position events carrying an older sequence predate that seek.
func (e *Engine) SeekSeq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seekSeq
}

// Duration returns the duration of the current source, or 0 before metadata.
func (e *Engine) Duration() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.duration
}

// URL returns the current source URL.
func (e *Engine) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

// Close releases the backend and closes the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancelRestartLocked()
	e.mu.Unlock()

	e.cancel()
	err := e.media.Close()
	<-e.done
	close(e.eventCh)
	if err != nil {
		return errors.Wrap(err, "failed to close media")
	}
	return nil
}

// pump consumes backend events until the engine is closed.
func (e *Engine) pump() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			return
		case seq := <-e.restartCh:
			if generation, ok := e.takeRestart(seq); ok {
				e.emit(Event{Type: EventRestart, Generation: generation})
			}
		case me, ok := <-e.media.Events():
			if !ok {
				return
			}
			if ev, forward := e.apply(me); forward {
				e.emit(ev)
			}
		}
	}
}

// apply folds a backend event into the engine state.
// It reports whether the event should be forwarded.
func (e *Engine) apply(me MediaEvent) (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if me.Generation != e.generation {
		zlog.Debug().Msgf("playback: dropping stale event: type=%s generation=%d current=%d",
			me.Type, me.Generation, e.generation)
		return Event{}, false
	}

	ev := Event{Generation: me.Generation}
	switch me.Type {
	case MediaMetadata:
		if e.state != StateLoading {
			return Event{}, false
		}
		e.duration = me.Duration
		e.state = StatePaused
		ev.Type = EventMetadataReady
		ev.Duration = me.Duration
		zlog.Debug().Msgf("playback: metadata ready: generation=%d duration=%.1f", me.Generation, me.Duration)

	case MediaTime:
		if !e.state.HasMedia() || e.state == StateEnded {
			return Event{}, false
		}
		if me.Seek != e.seekSeq {
			zlog.Debug().Msgf("playback: dropping position read before seek: time=%.1f seek=%d current=%d",
				me.Time, me.Seek, e.seekSeq)
			return Event{}, false
		}
		e.currentTime = clamp(me.Time, 0, e.duration)
		ev.Type = EventTimeAdvanced
		ev.Seek = e.seekSeq
		ev.Time = e.currentTime

	case MediaEnded:
		if !e.state.HasMedia() || e.state == StateEnded {
			return Event{}, false
		}
		e.state = StateEnded
		e.currentTime = e.duration
		ev.Type = EventEnded
		ev.Time = e.duration
		if e.repeat {
			e.scheduleRestartLocked(me.Generation)
		}

	case MediaError:
		zlog.Error().Msgf("playback: media error: generation=%d url=%s err=%v", me.Generation, e.url, me.Err)
		e.state = StateEmpty
		e.duration = 0
		e.currentTime = 0
		ev.Type = EventError
		ev.Err = me.Err

	default:
		return Event{}, false
	}
	return ev, true
}

// emit delivers ev to the consumer. Position updates are dropped when the
// consumer lags; other events wait until delivered or the engine closes.
func (e *Engine) emit(ev Event) {
	if ev.Type == EventTimeAdvanced {
		select {
		case e.eventCh <- ev:
		case <-e.ctx.Done():
		default:
		}
		return
	}
	select {
	case e.eventCh <- ev:
	case <-e.ctx.Done():
	}
}

// seekMediaLocked moves the backend to t under a new seek sequence.
// Must be called with lock held.
func (e *Engine) seekMediaLocked(t float64) {
	e.seekSeq++
	e.media.Seek(e.seekSeq, t)
}

// scheduleRestartLocked arms the repeat timer for generation.
// Must be called with lock held.
func (e *Engine) scheduleRestartLocked(generation uint64) {
	e.cancelRestartLocked()
	zlog.Debug().Msgf("playback: scheduling restart: generation=%d delay=%v", generation, e.config.RepeatDelay)

	e.restartSeq++
	seq := e.restartSeq
	e.restartCancel = e.startWallClockTimer(e.config.RepeatDelay, func() {
		select {
		case e.restartCh <- seq:
		case <-e.ctx.Done():
		}
	})
}

// takeRestart claims the restart identified by seq.
// It fails if the restart was cancelled or superseded after the timer fired.
func (e *Engine) takeRestart(seq uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.restartCancel == nil || e.restartSeq != seq || e.state != StateEnded || e.closed {
		return 0, false
	}
	e.restartCancel()
	e.restartCancel = nil
	return e.generation, true
}

// cancelRestartLocked stops the pending restart timer.
// Must be called with lock held.
func (e *Engine) cancelRestartLocked() {
	if e.restartCancel != nil {
		e.restartCancel()
		e.restartCancel = nil
	}
}

// startWallClockTimer starts a timer that triggers callback after duration, using wall clock.
// Returns a cancel function.
func (e *Engine) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(e.ctx)

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					if ctx.Err() == nil {
						callback()
					}
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
