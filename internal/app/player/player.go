// Package player provides the playback facade: the single owner of the
// transport engine, the session state and both listening ledgers.
package player

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/playback"
	"github.com/osa030/podbox/internal/app/player/state"
	appprogress "github.com/osa030/podbox/internal/app/progress"
	"github.com/osa030/podbox/internal/app/recent"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/domain/progress"
	"github.com/osa030/podbox/internal/infra/store"
)

// Errors
var (
	ErrInvalidEpisode = errors.New("invalid episode")
	ErrNoEpisode      = errors.New("no current episode")
	ErrNotReady       = errors.New("episode not ready")
	ErrLoadFailed     = errors.New("failed to load episode")
	ErrSuperseded     = errors.New("play request superseded")
	ErrClosed         = errors.New("player closed")
)

// Config holds player configuration.
type Config struct {
	DefaultVolume int     // Volume used when none is persisted
	SkipSeconds   float64 // Default skip distance
	SaveInterval  float64 // Seconds of media time between time-driven saves
}

// pendingPlay is a load awaiting metadata.
type pendingPlay struct {
	generation uint64
	resume     float64
	autoplay   bool
	done       chan error
}

func (p *pendingPlay) resolve(err error) {
	select {
	case p.done <- err:
	default:
	}
}

// Player coordinates the transport engine with the progress and recently
// played ledgers. All mutation happens under mu.
type Player struct {
	mu sync.Mutex

	engine   *playback.Engine
	progress *appprogress.Ledger
	recent   *recent.Ledger
	store    store.Store
	state    *state.Manager
	throttle *appprogress.Throttle
	notifier *notification.Manager
	config   Config

	pending *pendingPlay
	loaded  bool // engine holds media for the current episode
	closed  bool

	notifyCh chan notification.Type

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a player that takes ownership of engine and restores the
// persisted volume and current episode from s. The restored episode is not
// loaded until playback is requested.
func New(engine *playback.Engine, ledger *appprogress.Ledger, recentLedger *recent.Ledger,
	s store.Store, notifier *notification.Manager, config Config) *Player {
	if config.SkipSeconds <= 0 {
		config.SkipSeconds = 15
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		engine:   engine,
		progress: ledger,
		recent:   recentLedger,
		store:    s,
		throttle: appprogress.NewThrottle(config.SaveInterval),
		notifier: notifier,
		config:   config,
		notifyCh: make(chan notification.Type, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	volume := config.DefaultVolume
	var stored int
	if store.LoadJSON(s, store.KeyVolume, &stored) {
		volume = stored
	}
	p.state = state.New(engine.SetVolume(volume))

	var current episode.Descriptor
	if store.LoadJSON(s, store.KeyCurrentEpisode, &current) && !current.IsZero() {
		p.state.SetEpisode(current)
		if rec, ok := ledger.Get(current.EpisodeID); ok {
			p.state.SetPosition(rec.ResumePoint(), rec.Duration)
		}
		p.state.SetPhase(state.PhasePaused)
		zlog.Info().Msgf("player: restored session: episode=%s volume=%d", current.EpisodeID, p.state.GetVolume())
	}

	p.wg.Add(2)
	go p.run()
	go p.notifyLoop()
	return p
}

// PlayEpisode makes d the current episode and starts playback from its resume point.
// Requesting the current episode again toggles play/pause instead of reloading.
// It returns once playback started or failed; cancelling ctx stops waiting without
// cancelling the load.
func (p *Player) PlayEpisode(ctx context.Context, d episode.Descriptor) error {
	if d.EpisodeID == "" || d.AudioURL == "" {
		return errors.Wrapf(ErrInvalidEpisode, "episode=%q url=%q", d.EpisodeID, d.AudioURL)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}

	if cur, ok := p.state.GetEpisode(); ok && cur.EpisodeID == d.EpisodeID {
		pending, err := p.toggleLocked()
		p.mu.Unlock()
		if err != nil || pending == nil {
			return err
		}
		return p.wait(ctx, pending)
	}

	if !d.HasValidAudio() {
		zlog.Warn().Msgf("player: audio url does not look playable: episode=%s url=%s", d.EpisodeID, d.AudioURL)
	}

	p.engine.CancelRestart()
	p.supersedeLocked()
	p.engine.Pause()

	p.state.SetEpisode(d)
	p.persistCurrent(d)
	p.recent.Track(d)

	var resume float64
	if rec, ok := p.progress.Get(d.EpisodeID); ok {
		resume = rec.ResumePoint()
	}
	zlog.Info().Msgf("player: playing episode: episode=%s resume=%.1f", d.EpisodeID, resume)

	pending := p.beginLoadLocked(d, resume, true)
	p.publish(notification.TypeEpisodeChanged)
	p.mu.Unlock()

	return p.wait(ctx, pending)
}

// TogglePlayPause pauses a playing episode or resumes a paused one.
// It is a no-op without a current episode.
func (p *Player) TogglePlayPause(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	pending, err := p.toggleLocked()
	p.mu.Unlock()

	if err != nil || pending == nil {
		return err
	}
	return p.wait(ctx, pending)
}

// SeekTo moves playback to t seconds and saves progress immediately.
// It returns the applied, clamped position.
func (p *Player) SeekTo(t float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, err := p.readyEpisodeLocked()
	if err != nil {
		return 0, err
	}
	return p.seekLocked(cur, t)
}

// SkipForward seeks seconds ahead. A non-positive value uses the configured default.
func (p *Player) SkipForward(seconds float64) (float64, error) {
	return p.skip(seconds, 1)
}

// SkipBackward seeks seconds back. A non-positive value uses the configured default.
func (p *Player) SkipBackward(seconds float64) (float64, error) {
	return p.skip(seconds, -1)
}

func (p *Player) skip(seconds, direction float64) (float64, error) {
	if seconds <= 0 {
		seconds = p.config.SkipSeconds
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur, err := p.readyEpisodeLocked()
	if err != nil {
		return 0, err
	}
	return p.seekLocked(cur, p.engine.CurrentTime()+direction*seconds)
}

// StopPlayback pauses and rewinds to the beginning without touching the
// progress record, so the last saved position still serves as resume point.
func (p *Player) StopPlayback() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.state.GetEpisode()
	if !ok {
		return
	}

	p.engine.CancelRestart()
	if p.pending != nil {
		p.pending.autoplay = false
		p.pending.resume = 0
	}
	p.engine.Stop()

	p.state.SetCurrentTime(0)
	if p.state.GetPhase() != state.PhaseLoading {
		p.state.SetPhase(state.PhasePaused)
	}
	zlog.Debug().Msgf("player: stopped: episode=%s", cur.EpisodeID)
	p.publish(notification.TypeStateChanged)
}

// SetVolume clamps level to [0, 100], applies and persists it, and returns the applied value.
func (p *Player) SetVolume(level int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	applied := p.engine.SetVolume(level)
	p.state.SetVolume(applied)
	if err := store.SaveJSON(p.store, store.KeyVolume, applied); err != nil {
		zlog.Error().Msgf("player: failed to save volume: %v", err)
	}
	p.publish(notification.TypeStateChanged)
	return applied
}

// ToggleRepeat flips repeat and returns the new value.
func (p *Player) ToggleRepeat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	on := p.state.ToggleRepeat()
	p.engine.SetRepeat(on)
	p.publish(notification.TypeStateChanged)
	return on
}

// ToggleShuffle flips shuffle and returns the new value.
// Shuffle is an affordance flag only; there is no queue to reorder.
func (p *Player) ToggleShuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	on := p.state.ToggleShuffle()
	p.publish(notification.TypeStateChanged)
	return on
}

// ClearRecentlyPlayed empties the recently played list. Progress is kept.
func (p *Player) ClearRecentlyPlayed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recent.Clear()
	p.publish(notification.TypeHistoryCleared)
}

// ResetHistory empties both the progress ledger and the recently played list.
func (p *Player) ResetHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Reset()
	p.recent.Clear()
	p.throttle.Reset()
	zlog.Info().Msg("player: history reset")
	p.publish(notification.TypeHistoryCleared)
}

// GetEpisodeProgress returns the progress record for episodeID.
func (p *Player) GetEpisodeProgress(episodeID string) (progress.Record, bool) {
	return p.progress.Get(episodeID)
}

// AllProgress returns every progress record keyed by episode ID.
func (p *Player) AllProgress() map[string]progress.Record {
	return p.progress.All()
}

// RecentlyPlayed returns the recently played episodes, most recent first.
func (p *Player) RecentlyPlayed() []episode.Descriptor {
	return p.recent.List()
}

// Snapshot returns the current session state.
func (p *Player) Snapshot() state.Snapshot {
	return p.state.Snapshot()
}

// Subscribe registers stream for state notifications and sends it the current state.
func (p *Player) Subscribe(stream notification.Stream) (string, error) {
	id := p.notifier.Subscribe(stream)
	err := p.notifier.Send(id, &notification.Notification{
		Type:     notification.TypeStateChanged,
		Snapshot: p.state.Snapshot(),
	})
	if err != nil {
		p.notifier.Unsubscribe(id)
		return "", errors.Wrap(err, "failed to send initial state")
	}
	return id, nil
}

// Unsubscribe removes a subscription.
func (p *Player) Unsubscribe(id string) {
	p.notifier.Unsubscribe(id)
}

// Done is closed when the player is closed.
func (p *Player) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close stops event processing and releases the engine.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.supersedeLocked()
	p.mu.Unlock()

	p.cancel()
	err := p.engine.Close()
	p.wg.Wait()
	p.notifier.Close()
	return err
}

// run applies engine events until the engine is closed.
func (p *Player) run() {
	defer p.wg.Done()
	for ev := range p.engine.Events() {
		p.handle(ev)
	}
}

func (p *Player) handle(ev playback.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Generation != p.engine.Generation() {
		return
	}
	cur, ok := p.state.GetEpisode()
	if !ok {
		return
	}

	switch ev.Type {
	case playback.EventMetadataReady:
		p.onMetadataLocked(cur, ev)

	case playback.EventTimeAdvanced:
		if ev.Seek != p.engine.SeekSeq() {
			return
		}
		if p.throttle.Due(cur.EpisodeID, ev.Time) {
			p.saveLocked(cur.EpisodeID, ev.Time, p.engine.Duration(), false)
		}
		p.state.SetCurrentTime(ev.Time)
		p.publish(notification.TypeStateChanged)

	case playback.EventEnded:
		duration := p.engine.Duration()
		p.saveLocked(cur.EpisodeID, duration, duration, true)
		p.state.SetPosition(duration, duration)
		p.state.SetPhase(state.PhaseCompleted)
		zlog.Info().Msgf("player: episode completed: episode=%s repeat=%t", cur.EpisodeID, p.state.IsRepeatActive())
		p.publish(notification.TypeStateChanged)

	case playback.EventError:
		p.loaded = false
		p.state.SetPhase(state.PhasePaused)
		if p.pending != nil && p.pending.generation == ev.Generation {
			p.pending.resolve(errors.Wrapf(ErrLoadFailed, "%v", ev.Err))
			p.pending = nil
		}
		zlog.Error().Msgf("player: failed to load episode: episode=%s err=%v", cur.EpisodeID, ev.Err)
		p.publish(notification.TypeStateChanged)

	case playback.EventRestart:
		if !p.state.IsRepeatActive() || p.state.GetPhase() != state.PhaseCompleted {
			return
		}
		zlog.Debug().Msgf("player: repeating episode: episode=%s", cur.EpisodeID)
		p.beginLoadLocked(cur, 0, true)
		p.publish(notification.TypeStateChanged)
	}
}

func (p *Player) onMetadataLocked(cur episode.Descriptor, ev playback.Event) {
	p.loaded = true
	p.state.SetPosition(0, ev.Duration)

	pending := p.pending
	p.pending = nil
	if pending == nil || pending.generation != ev.Generation {
		p.state.SetPhase(state.PhasePaused)
		p.publish(notification.TypeStateChanged)
		return
	}

	if pending.resume > 0 && pending.resume < ev.Duration {
		if t, err := p.engine.Seek(pending.resume); err == nil {
			p.state.SetCurrentTime(t)
		}
	}

	if !pending.autoplay {
		p.state.SetPhase(state.PhasePaused)
		pending.resolve(nil)
		p.publish(notification.TypeStateChanged)
		return
	}

	if err := p.engine.Play(); err != nil {
		zlog.Warn().Msgf("player: playback rejected: episode=%s err=%v", cur.EpisodeID, err)
		p.state.SetPhase(state.PhasePaused)
		pending.resolve(err)
	} else {
		p.state.SetPhase(state.PhasePlaying)
		pending.resolve(nil)
	}
	p.publish(notification.TypeStateChanged)
}

// toggleLocked returns a pending play when resuming requires a load.
func (p *Player) toggleLocked() (*pendingPlay, error) {
	cur, ok := p.state.GetEpisode()
	if !ok {
		return nil, nil
	}

	phase := p.state.GetPhase()
	switch phase {
	case state.PhaseLoading:
		if p.pending != nil {
			p.pending.autoplay = !p.pending.autoplay
		}
		return nil, nil
	case state.PhasePlaying:
		p.pauseLocked(cur)
		return nil, nil
	}

	if !p.loaded {
		var resume float64
		if rec, ok := p.progress.Get(cur.EpisodeID); ok {
			resume = rec.ResumePoint()
		}
		pending := p.beginLoadLocked(cur, resume, true)
		p.publish(notification.TypeStateChanged)
		return pending, nil
	}

	if err := p.engine.Play(); err != nil {
		zlog.Warn().Msgf("player: resume rejected: episode=%s err=%v", cur.EpisodeID, err)
		return nil, err
	}
	if phase == state.PhaseCompleted {
		p.state.SetCurrentTime(0)
	}
	p.state.SetPhase(state.PhasePlaying)
	p.publish(notification.TypeStateChanged)
	return nil, nil
}

func (p *Player) pauseLocked(cur episode.Descriptor) {
	p.engine.Pause()
	t, duration := p.engine.CurrentTime(), p.engine.Duration()
	p.saveLocked(cur.EpisodeID, t, duration, false)
	p.state.SetPosition(t, duration)
	p.state.SetPhase(state.PhasePaused)
	p.publish(notification.TypeStateChanged)
}

func (p *Player) seekLocked(cur episode.Descriptor, t float64) (float64, error) {
	applied, err := p.engine.Seek(t)
	if err != nil {
		return 0, errors.Wrap(ErrNotReady, err.Error())
	}

	duration := p.engine.Duration()
	p.state.SetCurrentTime(applied)
	if p.state.GetPhase() == state.PhaseCompleted && applied < duration {
		p.state.SetPhase(state.PhasePaused)
	}
	p.saveLocked(cur.EpisodeID, applied, duration, false)
	p.publish(notification.TypeStateChanged)
	return applied, nil
}

func (p *Player) readyEpisodeLocked() (episode.Descriptor, error) {
	cur, ok := p.state.GetEpisode()
	if !ok {
		return episode.Descriptor{}, ErrNoEpisode
	}
	if !p.loaded {
		return episode.Descriptor{}, errors.Wrapf(ErrNotReady, "episode=%s", cur.EpisodeID)
	}
	return cur, nil
}

// beginLoadLocked asks the engine for d and records the pending play.
func (p *Player) beginLoadLocked(d episode.Descriptor, resume float64, autoplay bool) *pendingPlay {
	p.throttle.Reset()
	p.loaded = false

	generation := p.engine.Load(d.AudioURL)
	p.pending = &pendingPlay{
		generation: generation,
		resume:     resume,
		autoplay:   autoplay,
		done:       make(chan error, 1),
	}
	p.state.SetPhase(state.PhaseLoading)
	return p.pending
}

func (p *Player) supersedeLocked() {
	if p.pending != nil {
		p.pending.resolve(ErrSuperseded)
		p.pending = nil
	}
}

// saveLocked writes progress when the duration is known.
func (p *Player) saveLocked(episodeID string, t, duration float64, completed bool) {
	if duration <= 0 {
		return
	}
	p.progress.Save(episodeID, t, duration, completed)
	p.throttle.Mark(episodeID, t)
	p.publish(notification.TypeProgressSaved)
}

func (p *Player) persistCurrent(d episode.Descriptor) {
	if err := store.SaveJSON(p.store, store.KeyCurrentEpisode, d); err != nil {
		zlog.Error().Msgf("player: failed to save current episode: %v", err)
	}
}

func (p *Player) wait(ctx context.Context, pending *pendingPlay) error {
	select {
	case err := <-pending.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrClosed
	}
}

// publish queues a notification without blocking.
func (p *Player) publish(t notification.Type) {
	select {
	case p.notifyCh <- t:
	default:
		zlog.Debug().Msgf("player: notification dropped: type=%s", t)
	}
}

func (p *Player) notifyLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.notifyCh:
			p.notifier.Broadcast(&notification.Notification{
				Type:     t,
				Snapshot: p.state.Snapshot(),
			})
		}
	}
}
