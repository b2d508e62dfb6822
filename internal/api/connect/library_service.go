package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/podbox/internal/app/favorites"
	"github.com/osa030/podbox/internal/app/player"
	"github.com/osa030/podbox/internal/domain/catalog"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/infra/podcastapi"
)

// LibraryServiceName is the fully-qualified name of the library service.
const LibraryServiceName = "podbox.v1.LibraryService"

// LibraryService procedure names.
const (
	MethodListShows          = "ListShows"
	MethodGetShow            = "GetShow"
	MethodGetGenre           = "GetGenre"
	MethodPlayShowEpisode    = "PlayShowEpisode"
	MethodListRecentlyPlayed = "ListRecentlyPlayed"
	MethodListFavorites      = "ListFavorites"
	MethodToggleFavorite     = "ToggleFavorite"
)

// Catalog is the remote podcast catalog.
type Catalog interface {
	ListPreviews(ctx context.Context) ([]catalog.Preview, error)
	GetShow(ctx context.Context, id string) (*catalog.Show, error)
	GetGenre(ctx context.Context, id int) (*catalog.Genre, error)
}

// ListShowsRequest narrows and orders the catalog listing.
type ListShowsRequest struct {
	Search  string `mapstructure:"search" json:"search,omitempty"`
	GenreID int    `mapstructure:"genreId" json:"genreId,omitempty" validate:"gte=0"`
	Sort    string `mapstructure:"sort" json:"sort,omitempty" validate:"omitempty,oneof=recent oldest title-az title-za seasons"`
	Page    int    `mapstructure:"page" json:"page,omitempty" validate:"gte=0"`
	PerPage int    `mapstructure:"perPage" json:"perPage,omitempty" validate:"gte=0,lte=200"`
}

// ShowRequest identifies a show.
type ShowRequest struct {
	ID string `mapstructure:"id" json:"id" validate:"required"`
}

// GenreRequest identifies a genre.
type GenreRequest struct {
	ID int `mapstructure:"id" json:"id" validate:"gt=0"`
}

// ShowEpisodeRequest identifies one episode of a show.
type ShowEpisodeRequest struct {
	ShowID  string `mapstructure:"showId" json:"showId" validate:"required"`
	Season  int    `mapstructure:"season" json:"season" validate:"gt=0"`
	Episode int    `mapstructure:"episode" json:"episode" validate:"gt=0"`
}

// ListRecentRequest limits the recently played listing. Zero returns everything.
type ListRecentRequest struct {
	Limit int `mapstructure:"limit" json:"limit,omitempty" validate:"gte=0"`
}

// ListFavoritesRequest narrows and orders favorites.
type ListFavoritesRequest struct {
	Search  string `mapstructure:"search" json:"search,omitempty"`
	SortBy  string `mapstructure:"sortBy" json:"sortBy,omitempty" validate:"omitempty,oneof=dateAdded title"`
	Order   string `mapstructure:"order" json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
	Grouped bool   `mapstructure:"grouped" json:"grouped,omitempty"`
}

// ShowResponse is a show together with the listening state of its episodes.
type ShowResponse struct {
	Show      *catalog.Show `json:"show"`
	Favorites []string      `json:"favorites"`
}

// FavoritesResponse lists favorites, flat or grouped by show.
type FavoritesResponse struct {
	Items  []favorites.Favorite `json:"items,omitempty"`
	Groups []favorites.Group    `json:"groups,omitempty"`
	Total  int                  `json:"total"`
}

// ToggleFavoriteResponse reports the favorite state after a toggle.
type ToggleFavoriteResponse struct {
	EpisodeID  string `json:"episodeId"`
	IsFavorite bool   `json:"isFavorite"`
}

// LibraryService implements the LibraryService RPC.
type LibraryService struct {
	catalog   Catalog
	favorites *favorites.Ledger
	player    *player.Player
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(c Catalog, fav *favorites.Ledger, p *player.Player) *LibraryService {
	return &LibraryService{
		catalog:   c,
		favorites: fav,
		player:    p,
	}
}

// Handler returns the mount path and handler serving every procedure.
func (s *LibraryService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	return newServiceHandler(LibraryServiceName, map[string]unaryFunc{
		MethodListShows:          s.ListShows,
		MethodGetShow:            s.GetShow,
		MethodGetGenre:           s.GetGenre,
		MethodPlayShowEpisode:    s.PlayShowEpisode,
		MethodListRecentlyPlayed: s.ListRecentlyPlayed,
		MethodListFavorites:      s.ListFavorites,
		MethodToggleFavorite:     s.ToggleFavorite,
	}, nil, opts...)
}

// ListShows returns one page of the catalog.
func (s *LibraryService) ListShows(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ListShowsRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	previews, err := s.catalog.ListPreviews(ctx)
	if err != nil {
		return nil, toConnectError(catalogError(err))
	}
	return respond(catalog.Apply(previews, catalog.Query{
		Search:  in.Search,
		GenreID: in.GenreID,
		Sort:    catalog.SortCriteria(in.Sort),
		Page:    in.Page,
		PerPage: in.PerPage,
	}))
}

// GetShow returns a show with its seasons and the favorited episode IDs.
func (s *LibraryService) GetShow(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ShowRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	show, err := s.catalog.GetShow(ctx, in.ID)
	if err != nil {
		return nil, toConnectError(catalogError(err))
	}

	favs := []string{}
	for _, season := range show.Seasons {
		for _, ep := range season.Episodes {
			id := episode.ID(show.ID, season.Season, ep.Episode)
			if s.favorites.Contains(id) {
				favs = append(favs, id)
			}
		}
	}
	return respond(ShowResponse{Show: show, Favorites: favs})
}

// GetGenre returns a genre.
func (s *LibraryService) GetGenre(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in GenreRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	genre, err := s.catalog.GetGenre(ctx, in.ID)
	if err != nil {
		return nil, toConnectError(catalogError(err))
	}
	return respond(genre)
}

// PlayShowEpisode resolves an episode from the catalog and plays it.
func (s *LibraryService) PlayShowEpisode(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ShowEpisodeRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	show, err := s.catalog.GetShow(ctx, in.ShowID)
	if err != nil {
		return nil, toConnectError(catalogError(err))
	}
	d, err := show.Descriptor(in.Season, in.Episode)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := s.player.PlayEpisode(ctx, d); err != nil {
		return nil, toConnectError(err)
	}
	return respond(s.player.Snapshot())
}

// ListRecentlyPlayed returns recently played episodes, most recent first.
func (s *LibraryService) ListRecentlyPlayed(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ListRecentRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	items := s.player.RecentlyPlayed()
	if in.Limit > 0 && len(items) > in.Limit {
		items = items[:in.Limit]
	}
	return respond(newList(items))
}

// ListFavorites returns favorites.
func (s *LibraryService) ListFavorites(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ListFavoritesRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	q := favorites.Query{
		Search:    in.Search,
		SortBy:    favorites.SortBy(in.SortBy),
		Ascending: in.Order == "asc",
	}
	if in.Grouped {
		groups := s.favorites.Grouped(q)
		total := 0
		for _, g := range groups {
			total += len(g.Items)
		}
		if groups == nil {
			groups = []favorites.Group{}
		}
		return respond(FavoritesResponse{Groups: groups, Total: total})
	}
	items := s.favorites.List(q)
	if items == nil {
		items = []favorites.Favorite{}
	}
	return respond(FavoritesResponse{Items: items, Total: len(items)})
}

// ToggleFavorite adds or removes an episode of a show from favorites.
func (s *LibraryService) ToggleFavorite(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var in ShowEpisodeRequest
	if err := decodeRequest(req.Msg, &in); err != nil {
		return nil, err
	}
	show, err := s.catalog.GetShow(ctx, in.ShowID)
	if err != nil {
		return nil, toConnectError(catalogError(err))
	}
	_, ep, err := show.FindEpisode(in.Season, in.Episode)
	if err != nil {
		return nil, toConnectError(err)
	}
	d, err := show.Descriptor(in.Season, in.Episode)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(ToggleFavoriteResponse{
		EpisodeID:  d.EpisodeID,
		IsFavorite: s.favorites.Toggle(d, ep.Description),
	})
}

// catalogError marks transport and server failures so they map to Unavailable.
func catalogError(err error) error {
	if podcastapi.IsNotFound(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Mark(err, ErrCatalogUnavailable)
}
