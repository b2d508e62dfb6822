package connect

import (
	"context"
	"encoding/json"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/podbox/internal/app/player/state"
	"github.com/osa030/podbox/internal/domain/catalog"
	"github.com/osa030/podbox/internal/domain/episode"
)

// Client is a typed client for the player and library services.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

func (c *Client) rpc(service, method string) *connect.Client[structpb.Struct, structpb.Struct] {
	return connect.NewClient[structpb.Struct, structpb.Struct](
		c.httpClient, c.baseURL+procedurePath(service, method), c.opts...)
}

// call performs one unary call. in may be nil; out may be nil to discard the response.
func (c *Client) call(ctx context.Context, service, method string, in, out any) error {
	if in == nil {
		in = empty{}
	}
	msg, err := encodeMessage(in)
	if err != nil {
		return err
	}
	resp, err := c.rpc(service, method).CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeMessage(resp.Msg, out)
}

// decodeMessage converts a structpb message into out through its JSON form.
func decodeMessage(msg *structpb.Struct, out any) error {
	data, err := protojson.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to decode message")
	}
	return nil
}

// PlayEpisode plays d, or toggles it when it is already current.
func (c *Client) PlayEpisode(ctx context.Context, d episode.Descriptor) (state.Snapshot, error) {
	var out state.Snapshot
	err := c.call(ctx, PlayerServiceName, MethodPlayEpisode, PlayEpisodeRequest{Episode: d}, &out)
	return out, err
}

// TogglePlayPause toggles the current episode.
func (c *Client) TogglePlayPause(ctx context.Context) (state.Snapshot, error) {
	var out state.Snapshot
	err := c.call(ctx, PlayerServiceName, MethodTogglePlayPause, nil, &out)
	return out, err
}

// SeekTo moves the playhead and returns the applied time.
func (c *Client) SeekTo(ctx context.Context, t float64) (float64, error) {
	var out PositionResponse
	err := c.call(ctx, PlayerServiceName, MethodSeekTo, SeekRequest{Time: t}, &out)
	return out.CurrentTime, err
}

// SkipForward skips forward. Zero seconds uses the server default.
func (c *Client) SkipForward(ctx context.Context, seconds float64) (float64, error) {
	var out PositionResponse
	err := c.call(ctx, PlayerServiceName, MethodSkipForward, SkipRequest{Seconds: seconds}, &out)
	return out.CurrentTime, err
}

// SkipBackward skips backward. Zero seconds uses the server default.
func (c *Client) SkipBackward(ctx context.Context, seconds float64) (float64, error) {
	var out PositionResponse
	err := c.call(ctx, PlayerServiceName, MethodSkipBackward, SkipRequest{Seconds: seconds}, &out)
	return out.CurrentTime, err
}

// Stop rewinds the current episode.
func (c *Client) Stop(ctx context.Context) (state.Snapshot, error) {
	var out state.Snapshot
	err := c.call(ctx, PlayerServiceName, MethodStop, nil, &out)
	return out, err
}

// SetVolume sets the volume and returns the applied level.
func (c *Client) SetVolume(ctx context.Context, level int) (int, error) {
	var out VolumeResponse
	err := c.call(ctx, PlayerServiceName, MethodSetVolume, VolumeRequest{Level: &level}, &out)
	return out.Volume, err
}

// ToggleRepeat flips repeat mode and returns the new value.
func (c *Client) ToggleRepeat(ctx context.Context) (bool, error) {
	var out FlagResponse
	err := c.call(ctx, PlayerServiceName, MethodToggleRepeat, nil, &out)
	return out.Active, err
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (c *Client) ToggleShuffle(ctx context.Context) (bool, error) {
	var out FlagResponse
	err := c.call(ctx, PlayerServiceName, MethodToggleShuffle, nil, &out)
	return out.Active, err
}

// GetStatus returns the session state.
func (c *Client) GetStatus(ctx context.Context) (state.Snapshot, error) {
	var out state.Snapshot
	err := c.call(ctx, PlayerServiceName, MethodGetStatus, nil, &out)
	return out, err
}

// GetProgress returns the record for episodeID, or every record when it is empty.
func (c *Client) GetProgress(ctx context.Context, episodeID string) (ProgressResponse, error) {
	var out ProgressResponse
	err := c.call(ctx, PlayerServiceName, MethodGetProgress, ProgressRequest{EpisodeID: episodeID}, &out)
	return out, err
}

// ClearRecentlyPlayed empties the recently played list.
func (c *Client) ClearRecentlyPlayed(ctx context.Context) error {
	return c.call(ctx, PlayerServiceName, MethodClearRecentlyPlayed, nil, nil)
}

// ResetHistory clears progress and the recently played list.
func (c *Client) ResetHistory(ctx context.Context) error {
	return c.call(ctx, PlayerServiceName, MethodResetHistory, nil, nil)
}

// Subscribe streams notifications to fn until ctx is done, the server closes
// the stream or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(NotificationMessage) error) error {
	msg, err := encodeMessage(empty{})
	if err != nil {
		return err
	}
	stream, err := c.rpc(PlayerServiceName, MethodSubscribe).CallServerStream(ctx, connect.NewRequest(msg))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		var n NotificationMessage
		if err := decodeMessage(stream.Msg(), &n); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return stream.Err()
}

// ListShows returns one page of the catalog.
func (c *Client) ListShows(ctx context.Context, req ListShowsRequest) (catalog.Page, error) {
	var out catalog.Page
	err := c.call(ctx, LibraryServiceName, MethodListShows, req, &out)
	return out, err
}

// GetShow returns a show and its favorited episode IDs.
func (c *Client) GetShow(ctx context.Context, id string) (ShowResponse, error) {
	var out ShowResponse
	err := c.call(ctx, LibraryServiceName, MethodGetShow, ShowRequest{ID: id}, &out)
	return out, err
}

// GetGenre returns a genre.
func (c *Client) GetGenre(ctx context.Context, id int) (catalog.Genre, error) {
	var out catalog.Genre
	err := c.call(ctx, LibraryServiceName, MethodGetGenre, GenreRequest{ID: id}, &out)
	return out, err
}

// PlayShowEpisode plays an episode resolved from the catalog.
func (c *Client) PlayShowEpisode(ctx context.Context, showID string, season, ep int) (state.Snapshot, error) {
	var out state.Snapshot
	err := c.call(ctx, LibraryServiceName, MethodPlayShowEpisode,
		ShowEpisodeRequest{ShowID: showID, Season: season, Episode: ep}, &out)
	return out, err
}

// ListRecentlyPlayed returns up to limit recently played episodes. Zero returns all of them.
func (c *Client) ListRecentlyPlayed(ctx context.Context, limit int) ([]episode.Descriptor, error) {
	var out list[episode.Descriptor]
	err := c.call(ctx, LibraryServiceName, MethodListRecentlyPlayed, ListRecentRequest{Limit: limit}, &out)
	return out.Items, err
}

// ListFavorites returns favorites.
func (c *Client) ListFavorites(ctx context.Context, req ListFavoritesRequest) (FavoritesResponse, error) {
	var out FavoritesResponse
	err := c.call(ctx, LibraryServiceName, MethodListFavorites, req, &out)
	return out, err
}

// ToggleFavorite flips the favorite state of an episode.
func (c *Client) ToggleFavorite(ctx context.Context, showID string, season, ep int) (ToggleFavoriteResponse, error) {
	var out ToggleFavoriteResponse
	err := c.call(ctx, LibraryServiceName, MethodToggleFavorite,
		ShowEpisodeRequest{ShowID: showID, Season: season, Episode: ep}, &out)
	return out, err
}
