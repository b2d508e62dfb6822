package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/app/player/state"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/domain/progress"
)

// PlayerServiceName is the fully-qualified name of the player service.
const PlayerServiceName = "podbox.v1.PlayerService"

// PlayerService procedure names.
const (
	MethodPlayEpisode         = "PlayEpisode"
	MethodTogglePlayPause     = "TogglePlayPause"
	MethodSeekTo              = "SeekTo"
	MethodSkipForward         = "SkipForward"
	MethodSkipBackward        = "SkipBackward"
	MethodStop                = "Stop"
	MethodSetVolume           = "SetVolume"
	MethodToggleRepeat        = "ToggleRepeat"
	MethodToggleShuffle       = "ToggleShuffle"
	MethodGetStatus           = "GetStatus"
	MethodGetProgress         = "GetProgress"
	MethodClearRecentlyPlayed = "ClearRecentlyPlayed"
	MethodResetHistory        = "ResetHistory"
	MethodSubscribe           = "Subscribe"
)

// PlayEpisodeRequest starts an episode, or toggles it when it is already current.
type PlayEpisodeRequest struct {
	Episode episode.Descriptor `mapstructure:"episode" json:"episode"`
}

// SeekRequest moves the playhead.
type SeekRequest struct {
	Time float64 `mapstructure:"time" json:"time" validate:"gte=0"`
}

// SkipRequest moves the playhead relative to the current time. Zero uses the configured default.
type SkipRequest struct {
	Seconds float64 `mapstructure:"seconds" json:"seconds,omitempty" validate:"gte=0"`
}

// VolumeRequest sets the volume. Values outside 0..100 are clamped.
type VolumeRequest struct {
	Level *int `mapstructure:"level" json:"level" validate:"required"`
}

// ProgressRequest asks for one record, or all of them when EpisodeID is empty.
type ProgressRequest struct {
	EpisodeID string `mapstructure:"episodeId" json:"episodeId,omitempty"`
}

// PositionResponse reports the playhead after a seek or skip.
type PositionResponse struct {
	CurrentTime float64 `json:"currentTime"`
}

// VolumeResponse reports the applied volume.
type VolumeResponse struct {
	Volume int `json:"volume"`
}

// FlagResponse reports a toggled flag.
type FlagResponse struct {
	Active bool `json:"active"`
}

// ProgressResponse carries progress records.
type ProgressResponse struct {
	EpisodeID string                     `json:"episodeId,omitempty"`
	Found     bool                       `json:"found"`
	Record    *progress.Record           `json:"record,omitempty"`
	Percent   float64                    `json:"percent"`
	Records   map[string]progress.Record `json:"records,omitempty"`
}

// NotificationMessage is one message of the Subscribe stream.
type NotificationMessage struct {
	SequenceNo uint64         `json:"sequenceNo"`
	Type       string         `json:"type"`
	Snapshot   state.Snapshot `json:"snapshot"`
}

type empty struct{}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player *player.Player
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(p *player.Player) *PlayerService {
	return &PlayerService{player: p}
}

// Handler returns the mount path and handler serving every procedure.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	return newServiceHandler(PlayerServiceName, map[string]unaryFunc{
		MethodPlayEpisode:         s.PlayEpisode,
		MethodTogglePlayPause:     s.TogglePlayPause,
		MethodSeekTo:              s.SeekTo,
		MethodSkipForward:         s.SkipForward,
		MethodSkipBackward:        s.SkipBackward,
		MethodStop:                s.Stop,
		MethodSetVolume:           s.SetVolume,
		MethodToggleRepeat:        s.ToggleRepeat,
		MethodToggleShuffle:       s.ToggleShuffle,
		MethodGetStatus:           s.GetStatus,
		MethodGetProgress:         s.GetProgress,
		MethodClearRecentlyPlayed: s.ClearRecentlyPlayed,
		MethodResetHistory:        s.ResetHistory,
	}, map[string]streamFunc{
		MethodSubscribe: s.Subscribe,
	}, opts...)
}

// PlayEpisode plays an episode and returns the resulting state.
func (s *PlayerService) PlayEpisode(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in PlayEpisodeRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	if err := s.player.PlayEpisode(ctx, in.Episode); err != nil {
		return nil, toConnectError(err)
	}
	return respond(s.player.Snapshot())
}

// TogglePlayPause toggles the current episode.
func (s *PlayerService) TogglePlayPause(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.TogglePlayPause(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return respond(s.player.Snapshot())
}

// SeekTo moves the playhead to an absolute time.
func (s *PlayerService) SeekTo(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in SeekRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	t, err := s.player.SeekTo(in.Time)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(PositionResponse{CurrentTime: t})
}

// SkipForward moves the playhead forward.
func (s *PlayerService) SkipForward(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in SkipRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	t, err := s.player.SkipForward(in.Seconds)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(PositionResponse{CurrentTime: t})
}

// SkipBackward moves the playhead backward.
func (s *PlayerService) SkipBackward(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in SkipRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	t, err := s.player.SkipBackward(in.Seconds)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(PositionResponse{CurrentTime: t})
}

// Stop rewinds the current episode without touching its saved progress.
func (s *PlayerService) Stop(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.StopPlayback()
	return respond(s.player.Snapshot())
}

// SetVolume sets the volume.
func (s *PlayerService) SetVolume(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in VolumeRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	return respond(VolumeResponse{Volume: s.player.SetVolume(*in.Level)})
}

// ToggleRepeat flips repeat mode.
func (s *PlayerService) ToggleRepeat(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return respond(FlagResponse{Active: s.player.ToggleRepeat()})
}

// ToggleShuffle flips shuffle mode.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return respond(FlagResponse{Active: s.player.ToggleShuffle()})
}

// GetStatus returns the current session state.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return respond(s.player.Snapshot())
}

// GetProgress returns saved progress.
func (s *PlayerService) GetProgress(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ProgressRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	if in.EpisodeID == "" {
		return respond(ProgressResponse{Found: true, Records: s.player.AllProgress()})
	}

	resp := ProgressResponse{EpisodeID: in.EpisodeID}
	if rec, ok := s.player.GetEpisodeProgress(in.EpisodeID); ok {
		resp.Found = true
		resp.Record = &rec
		resp.Percent = rec.Percent()
	}
	return respond(resp)
}

// ClearRecentlyPlayed empties the recently played list.
func (s *PlayerService) ClearRecentlyPlayed(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.ClearRecentlyPlayed()
	return respond(empty{})
}

// ResetHistory clears progress and the recently played list.
func (s *PlayerService) ResetHistory(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.ResetHistory()
	return respond(empty{})
}

// Subscribe streams state notifications, starting with the current state.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	id, err := s.player.Subscribe(adapter)
	if err != nil {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	zlog.Debug().Msgf("api: subscribed: id=%s", id)

	select {
	case <-ctx.Done():
	case <-s.player.Done():
	}

	s.player.Unsubscribe(id)
	zlog.Debug().Msgf("api: unsubscribed: id=%s", id)
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := encodeMessage(NotificationMessage{
		SequenceNo: n.SequenceNo,
		Type:       n.Type.String(),
		Snapshot:   n.Snapshot,
	})
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(msg)
}
