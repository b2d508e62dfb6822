// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/podbox/internal/app/playback"
	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/domain/catalog"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/podcastapi"
)

// ErrCatalogUnavailable marks failures talking to the remote catalog.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

var validate = validator.New()

type (
	unaryFunc  func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)
	streamFunc func(context.Context, *connect.Request[structpb.Struct], *connect.ServerStream[structpb.Struct]) error
)

// newServiceHandler mounts every procedure of service on one handler.
func newServiceHandler(service string, unary map[string]unaryFunc, streams map[string]streamFunc,
	opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	for name, fn := range unary {
		procedure := procedurePath(service, name)
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	for name, fn := range streams {
		procedure := procedurePath(service, name)
		mux.Handle(procedure, connect.NewServerStreamHandler(procedure, fn, opts...))
	}
	return "/" + service + "/", mux
}

func procedurePath(service, method string) string {
	return "/" + service + "/" + method
}

// decodeRequest copies the request payload into out and validates it.
func decodeRequest(msg *structpb.Struct, out any) error {
	raw := map[string]any{}
	if msg != nil {
		raw = msg.AsMap()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to create decoder"))
	}
	if err := dec.Decode(raw); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "malformed request"))
	}
	if err := validate.Struct(out); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.Wrap(err, "invalid request"))
	}
	return nil
}

// encodeMessage converts v into a structpb message through its JSON form.
// v must encode as a JSON object.
func encodeMessage(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response")
	}
	var msg structpb.Struct
	if err := protojson.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to convert response")
	}
	return &msg, nil
}

// respond wraps v in a connect response.
func respond(v any) (*connect.Response[structpb.Struct], error) {
	msg, err := encodeMessage(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// list is the response envelope for array results.
type list[T any] struct {
	Items []T `json:"items"`
}

func newList[T any](items []T) list[T] {
	if items == nil {
		items = []T{}
	}
	return list[T]{Items: items}
}

// toConnectError maps application errors to connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, player.ErrInvalidEpisode), errors.Is(err, episode.ErrInvalidID):
		code = connect.CodeInvalidArgument
	case errors.Is(err, playback.ErrPlayRejected),
		errors.Is(err, player.ErrNoEpisode),
		errors.Is(err, player.ErrNotReady),
		errors.Is(err, playback.ErrNotReady):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, player.ErrSuperseded):
		code = connect.CodeAborted
	case errors.Is(err, catalog.ErrSeasonNotFound),
		errors.Is(err, catalog.ErrEpisodeNotFound),
		podcastapi.IsNotFound(err):
		code = connect.CodeNotFound
	case errors.Is(err, ErrCatalogUnavailable),
		errors.Is(err, player.ErrLoadFailed),
		errors.Is(err, player.ErrClosed),
		errors.Is(err, playback.ErrClosed):
		code = connect.CodeUnavailable
	}
	if code == connect.CodeInternal {
		zlog.Error().Err(err).Msg("api: unexpected error")
	}
	return connect.NewError(code, err)
}

// NewLoggingInterceptor logs every unary call at debug level and failures at warn.
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			resp, err := next(ctx, req)
			if err != nil {
				zlog.Warn().Msgf("api: call failed: procedure=%s, code=%s, err=%v",
					procedure, connect.CodeOf(err), err)
				return resp, err
			}
			zlog.Debug().Msgf("api: call: procedure=%s", strings.TrimPrefix(procedure, "/"))
			return resp, nil
		}
	}
}
