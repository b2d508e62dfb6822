package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/playback"
)

// ErrNotLoaded is returned when playing before metadata is known.
var ErrNotLoaded = errors.New("no media loaded")

// Prober reports the duration of an audio source in seconds.
type Prober interface {
	Probe(ctx context.Context, url string) (float64, error)
}

// ClockMedia is a headless backend: it learns the duration from a Prober and
// advances the position with the wall clock instead of producing sound.
type ClockMedia struct {
	mu sync.Mutex

	prober Prober
	tick   time.Duration

	generation uint64
	seek       uint64
	duration   float64
	loaded     bool
	playing    bool
	base       float64   // Position at startTime
	startTime  time.Time // Wall time playback (re)started
	volume     float64

	loadCancel context.CancelFunc
	tickCancel context.CancelFunc

	events chan playback.MediaEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClockMedia creates a clock backend that reports time every tick.
func NewClockMedia(prober Prober, tick time.Duration) *ClockMedia {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ClockMedia{
		prober: prober,
		tick:   tick,
		volume: 1,
		events: make(chan playback.MediaEvent, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Load implements playback.Media.
func (m *ClockMedia) Load(generation uint64, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if m.loadCancel != nil {
		m.loadCancel()
	}

	m.generation = generation
	m.duration = 0
	m.loaded = false
	m.base = 0

	ctx, cancel := context.WithCancel(m.ctx)
	m.loadCancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		duration, err := m.prober.Probe(ctx, url)

		m.mu.Lock()
		if m.generation != generation || ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		if err != nil {
			m.mu.Unlock()
			m.emit(playback.MediaEvent{Type: playback.MediaError, Generation: generation, Err: err})
			return
		}
		m.duration = duration
		m.loaded = true
		m.mu.Unlock()

		zlog.Debug().Msgf("audio: probed source: generation=%d duration=%.1f", generation, duration)
		m.emit(playback.MediaEvent{Type: playback.MediaMetadata, Generation: generation, Duration: duration})
	}()
}

// Play implements playback.Media.
func (m *ClockMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return ErrNotLoaded
	}
	if m.playing {
		return nil
	}

	m.playing = true
	m.startTime = toWallTime(time.Now())

	ctx, cancel := context.WithCancel(m.ctx)
	m.tickCancel = cancel
	m.wg.Add(1)
	go m.tickLoop(ctx, m.generation)
	return nil
}

// Pause implements playback.Media.
func (m *ClockMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Seek implements playback.Media.
func (m *ClockMedia) Seek(seq uint64, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seek = seq
	if seconds < 0 {
		seconds = 0
	}
	if seconds > m.duration {
		seconds = m.duration
	}
	m.base = seconds
	m.startTime = toWallTime(time.Now())
}

// SetVolume implements playback.Media.
func (m *ClockMedia) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

// Volume returns the last applied volume in [0, 1].
func (m *ClockMedia) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Position implements playback.Media.
func (m *ClockMedia) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

// Events implements playback.Media.
func (m *ClockMedia) Events() <-chan playback.MediaEvent {
	return m.events
}

// Close implements playback.Media.
func (m *ClockMedia) Close() error {
	m.cancel()
	m.wg.Wait()
	close(m.events)
	return nil
}

func (m *ClockMedia) tickLoop(ctx context.Context, generation uint64) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.generation != generation || !m.playing {
				m.mu.Unlock()
				return
			}
			pos := m.positionLocked()
			ev := playback.MediaEvent{Type: playback.MediaTime, Generation: generation, Seek: m.seek, Time: pos}
			if pos >= m.duration {
				m.base = m.duration
				m.playing = false
				m.tickCancel = nil
				m.mu.Unlock()
				m.emit(ev)
				m.emit(playback.MediaEvent{Type: playback.MediaEnded, Generation: generation})
				return
			}
			m.mu.Unlock()
			m.emitTime(ev)
		}
	}
}

// stopLocked freezes the position and stops the ticker.
// Must be called with lock held.
func (m *ClockMedia) stopLocked() {
	if m.playing {
		m.base = m.positionLocked()
		m.playing = false
	}
	if m.tickCancel != nil {
		m.tickCancel()
		m.tickCancel = nil
	}
}

func (m *ClockMedia) positionLocked() float64 {
	if !m.playing {
		return m.base
	}
	pos := m.base + toWallTime(time.Now()).Sub(m.startTime).Seconds()
	if pos > m.duration {
		return m.duration
	}
	return pos
}

func (m *ClockMedia) emit(ev playback.MediaEvent) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

// emitTime drops the update when the consumer lags.
func (m *ClockMedia) emitTime(ev playback.MediaEvent) {
	select {
	case m.events <- ev:
	default:
	}
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
