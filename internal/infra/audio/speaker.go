package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/playback"
)

// track bundles the resources of one loaded source.
type track struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	ended    bool
}

// SpeakerMedia plays audio through the system speaker.
type SpeakerMedia struct {
	mu sync.Mutex

	fetcher    *Fetcher
	sampleRate beep.SampleRate
	tick       time.Duration

	generation uint64
	seek       uint64
	current    *track
	level      float64
	playing    bool

	loadCancel context.CancelFunc
	tickCancel context.CancelFunc

	events chan playback.MediaEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpeakerMedia initializes the speaker at sampleRate and returns a backend using it.
func NewSpeakerMedia(fetcher *Fetcher, sampleRate int, tick time.Duration) (*SpeakerMedia, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SpeakerMedia{
		fetcher:    fetcher,
		sampleRate: sr,
		tick:       tick,
		level:      1,
		events:     make(chan playback.MediaEvent, 16),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Load implements playback.Media.
func (m *SpeakerMedia) Load(generation uint64, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()
	if m.loadCancel != nil {
		m.loadCancel()
	}
	m.generation = generation

	ctx, cancel := context.WithCancel(m.ctx)
	m.loadCancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t, err := m.open(ctx, url)

		m.mu.Lock()
		if m.generation != generation || ctx.Err() != nil {
			m.mu.Unlock()
			if t != nil {
				_ = t.streamer.Close()
			}
			return
		}
		if err != nil {
			m.mu.Unlock()
			m.emit(playback.MediaEvent{Type: playback.MediaError, Generation: generation, Err: err})
			return
		}
		m.current = t
		m.applyVolumeLocked()
		m.startLocked(generation)
		duration := Seconds(t.format, t.streamer.Len())
		m.mu.Unlock()

		zlog.Debug().Msgf("audio: decoded source: generation=%d duration=%.1f rate=%d",
			generation, duration, t.format.SampleRate)
		m.emit(playback.MediaEvent{Type: playback.MediaMetadata, Generation: generation, Duration: duration})
	}()
}

func (m *SpeakerMedia) open(ctx context.Context, url string) (*track, error) {
	data, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	s, format, err := Decode(url, data)
	if err != nil {
		return nil, err
	}

	var resampled beep.Streamer = s
	if format.SampleRate != m.sampleRate {
		resampled = beep.Resample(4, format.SampleRate, m.sampleRate, s)
	}
	ctrl := &beep.Ctrl{Streamer: resampled, Paused: true}
	return &track{
		streamer: s,
		format:   format,
		ctrl:     ctrl,
		volume:   &effects.Volume{Streamer: ctrl, Base: 2},
	}, nil
}

// startLocked hands the current track to the speaker mixer, paused.
// Must be called with lock held.
func (m *SpeakerMedia) startLocked(generation uint64) {
	t := m.current
	t.ended = false
	speaker.Play(beep.Seq(t.volume, beep.Callback(func() {
		// Runs on the audio goroutine with the speaker locked.
		m.wg.Add(1)
		go m.onEnded(generation)
	})))
}

func (m *SpeakerMedia) onEnded(generation uint64) {
	defer m.wg.Done()

	m.mu.Lock()
	if m.generation != generation || m.current == nil {
		m.mu.Unlock()
		return
	}
	m.current.ended = true
	m.playing = false
	if m.tickCancel != nil {
		m.tickCancel()
		m.tickCancel = nil
	}
	m.mu.Unlock()

	m.emit(playback.MediaEvent{Type: playback.MediaEnded, Generation: generation})
}

// Play implements playback.Media.
func (m *SpeakerMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNotLoaded
	}
	if m.playing {
		return nil
	}
	if m.current.ended {
		m.startLocked(m.generation)
	}

	speaker.Lock()
	m.current.ctrl.Paused = false
	speaker.Unlock()
	m.playing = true

	ctx, cancel := context.WithCancel(m.ctx)
	m.tickCancel = cancel
	m.wg.Add(1)
	go m.tickLoop(ctx, m.generation)
	return nil
}

// Pause implements playback.Media.
func (m *SpeakerMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

// Seek implements playback.Media.
func (m *SpeakerMedia) Seek(seq uint64, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seek = seq
	if m.current == nil {
		return
	}
	n := Samples(m.current.format, seconds)
	if n < 0 {
		n = 0
	}
	if n > m.current.streamer.Len() {
		n = m.current.streamer.Len()
	}

	speaker.Lock()
	err := m.current.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Msgf("audio: seek failed: generation=%d seconds=%.1f err=%v", m.generation, seconds, err)
	}
}

// Position implements playback.Media.
func (m *SpeakerMedia) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return 0
	}
	speaker.Lock()
	pos := m.current.streamer.Position()
	speaker.Unlock()
	return Seconds(m.current.format, pos)
}

// SetVolume implements playback.Media.
func (m *SpeakerMedia) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level = level
	if m.current != nil {
		speaker.Lock()
		m.applyVolumeLocked()
		speaker.Unlock()
	}
}

// applyVolumeLocked maps a linear level to the logarithmic volume effect.
// Must be called with lock held.
func (m *SpeakerMedia) applyVolumeLocked() {
	if m.level <= 0 {
		m.current.volume.Silent = true
		return
	}
	m.current.volume.Silent = false
	m.current.volume.Volume = math.Log2(m.level)
}

// Events implements playback.Media.
func (m *SpeakerMedia) Events() <-chan playback.MediaEvent {
	return m.events
}

// Close implements playback.Media.
func (m *SpeakerMedia) Close() error {
	m.mu.Lock()
	m.releaseLocked()
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	close(m.events)
	return nil
}

func (m *SpeakerMedia) tickLoop(ctx context.Context, generation uint64) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.generation != generation || !m.playing || m.current == nil {
				m.mu.Unlock()
				return
			}
			speaker.Lock()
			pos := m.current.streamer.Position()
			speaker.Unlock()
			ev := playback.MediaEvent{
				Type:       playback.MediaTime,
				Generation: generation,
				Seek:       m.seek,
				Time:       Seconds(m.current.format, pos),
			}
			m.mu.Unlock()

			select {
			case m.events <- ev:
			default:
			}
		}
	}
}

// pauseLocked pauses the mixer stream and stops the ticker.
// Must be called with lock held.
func (m *SpeakerMedia) pauseLocked() {
	if m.current != nil {
		speaker.Lock()
		m.current.ctrl.Paused = true
		speaker.Unlock()
	}
	m.playing = false
	if m.tickCancel != nil {
		m.tickCancel()
		m.tickCancel = nil
	}
}

// releaseLocked removes the current track from the mixer and closes it.
// Must be called with lock held.
func (m *SpeakerMedia) releaseLocked() {
	m.pauseLocked()
	speaker.Clear()
	if m.current != nil {
		if err := m.current.streamer.Close(); err != nil {
			zlog.Warn().Msgf("audio: failed to close stream: %v", err)
		}
		m.current = nil
	}
}

func (m *SpeakerMedia) emit(ev playback.MediaEvent) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}
