// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/podbox/internal/api/connect"
	"github.com/osa030/podbox/internal/domain/episode"
	"github.com/osa030/podbox/internal/domain/progress"
)

var (
	app     = kingpin.New("podbox", "podbox podcast player client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("PODBOX_SERVER").String()
	timeout = app.Flag("timeout", "Request timeout").Default("30s").Duration()

	// catalog
	showsCmd     = app.Command("shows", "List podcast shows")
	showsSearch  = showsCmd.Flag("search", "Filter by title").String()
	showsGenre   = showsCmd.Flag("genre", "Filter by genre ID").Int()
	showsSort    = showsCmd.Flag("sort", "Sort order").Default("recent").Enum("recent", "oldest", "title-az", "title-za", "seasons")
	showsPage    = showsCmd.Flag("page", "Page number").Default("1").Int()
	showsPerPage = showsCmd.Flag("per-page", "Shows per page").Default("20").Int()

	showCmd  = app.Command("show", "Show the seasons and episodes of a show")
	showID   = showCmd.Arg("show-id", "Show ID").Required().String()
	genreCmd = app.Command("genre", "Show a genre")
	genreID  = genreCmd.Arg("genre-id", "Genre ID").Required().Int()

	// playback
	playCmd     = app.Command("play", "Play an episode of a show")
	playShow    = playCmd.Arg("show-id", "Show ID").Required().String()
	playSeason  = playCmd.Arg("season", "Season number").Required().Int()
	playEpisode = playCmd.Arg("episode", "Episode number").Required().Int()

	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	seekCmd     = app.Command("seek", "Seek to a position in seconds")
	seekTime    = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()
	skipCmd     = app.Command("skip", "Skip forward (or backward with --back)")
	skipBack    = skipCmd.Flag("back", "Skip backward").Short('b').Bool()
	skipSeconds = skipCmd.Arg("seconds", "Seconds to skip (server default when omitted)").Float64()
	stopCmd     = app.Command("stop", "Stop and rewind the current episode")
	volumeCmd   = app.Command("volume", "Set the volume (0-100)")
	volumeLevel = volumeCmd.Arg("level", "Volume level").Required().Int()
	repeatCmd   = app.Command("repeat", "Toggle repeat")
	shuffleCmd  = app.Command("shuffle", "Toggle shuffle")
	statusCmd   = app.Command("status", "Show player status")

	// history
	progressCmd     = app.Command("progress", "Show saved progress")
	progressEpisode = progressCmd.Arg("episode-id", "Episode ID (all when omitted)").String()
	recentCmd       = app.Command("recent", "List recently played episodes")
	recentLimit     = recentCmd.Flag("limit", "Maximum number of episodes").Default("0").Int()
	clearRecentCmd  = app.Command("clear-recent", "Clear the recently played list")
	resetCmd        = app.Command("reset-history", "Clear all progress and recently played episodes")

	// favorites
	favoritesCmd     = app.Command("favorites", "List favorite episodes")
	favoritesSearch  = favoritesCmd.Flag("search", "Filter by title or description").String()
	favoritesSort    = favoritesCmd.Flag("sort", "Sort by").Default("dateAdded").Enum("dateAdded", "title")
	favoritesOrder   = favoritesCmd.Flag("order", "Sort direction").Default("desc").Enum("asc", "desc")
	favoritesGrouped = favoritesCmd.Flag("grouped", "Group by show").Bool()
	favoriteCmd      = app.Command("favorite", "Toggle an episode as favorite")
	favoriteShow     = favoriteCmd.Arg("show-id", "Show ID").Required().String()
	favoriteSeason   = favoriteCmd.Arg("season", "Season number").Required().Int()
	favoriteEpisode  = favoriteCmd.Arg("episode", "Episode number").Required().Int()

	subscribeCmd = app.Command("subscribe", "Follow player state changes")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server)
	colorize := shouldColorize(os.Stdout)

	if command == subscribeCmd.FullCommand() {
		subscribe(client, colorize)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := execute(ctx, client, command, colorize); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, client *apiconnect.Client, command string, colorize bool) error {
	switch command {
	case showsCmd.FullCommand():
		return listShows(ctx, client)
	case showCmd.FullCommand():
		return printShow(ctx, client, *showID)
	case genreCmd.FullCommand():
		genre, err := client.GetGenre(ctx, *genreID)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d shows)\n%s\n", genre.Title, len(genre.Shows), genre.Description)
		return nil
	case playCmd.FullCommand():
		snap, err := client.PlayShowEpisode(ctx, *playShow, *playSeason, *playEpisode)
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(snap, colorize))
	case toggleCmd.FullCommand():
		snap, err := client.TogglePlayPause(ctx)
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(snap, colorize))
	case seekCmd.FullCommand():
		t, err := client.SeekTo(ctx, *seekTime)
		if err != nil {
			return err
		}
		fmt.Printf("Position: %s\n", formatClock(t))
	case skipCmd.FullCommand():
		skip := client.SkipForward
		if *skipBack {
			skip = client.SkipBackward
		}
		t, err := skip(ctx, *skipSeconds)
		if err != nil {
			return err
		}
		fmt.Printf("Position: %s\n", formatClock(t))
	case stopCmd.FullCommand():
		snap, err := client.Stop(ctx)
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(snap, colorize))
	case volumeCmd.FullCommand():
		level, err := client.SetVolume(ctx, *volumeLevel)
		if err != nil {
			return err
		}
		fmt.Printf("Volume: %d%%\n", level)
	case repeatCmd.FullCommand():
		on, err := client.ToggleRepeat(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Repeat: %s\n", onOff(on))
	case shuffleCmd.FullCommand():
		on, err := client.ToggleShuffle(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Shuffle: %s\n", onOff(on))
	case statusCmd.FullCommand():
		snap, err := client.GetStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(snap, colorize))
	case progressCmd.FullCommand():
		return printProgress(ctx, client, *progressEpisode)
	case recentCmd.FullCommand():
		return printRecent(ctx, client, *recentLimit)
	case clearRecentCmd.FullCommand():
		if err := client.ClearRecentlyPlayed(ctx); err != nil {
			return err
		}
		fmt.Println("Recently played list cleared")
	case resetCmd.FullCommand():
		if err := client.ResetHistory(ctx); err != nil {
			return err
		}
		fmt.Println("Listening history reset")
	case favoritesCmd.FullCommand():
		return printFavorites(ctx, client)
	case favoriteCmd.FullCommand():
		resp, err := client.ToggleFavorite(ctx, *favoriteShow, *favoriteSeason, *favoriteEpisode)
		if err != nil {
			return err
		}
		if resp.IsFavorite {
			fmt.Printf("Added %s to favorites\n", resp.EpisodeID)
		} else {
			fmt.Printf("Removed %s from favorites\n", resp.EpisodeID)
		}
	}
	return nil
}

func listShows(ctx context.Context, client *apiconnect.Client) error {
	page, err := client.ListShows(ctx, apiconnect.ListShowsRequest{
		Search:  *showsSearch,
		GenreID: *showsGenre,
		Sort:    *showsSort,
		Page:    *showsPage,
		PerPage: *showsPerPage,
	})
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(page.Items))
	for _, p := range page.Items {
		rows = append(rows, []string{p.ID, p.Title, strconv.Itoa(p.Seasons), humanize.Time(p.Updated)})
	}
	fmt.Println(renderTable([]string{"ID", "Title", "Seasons", "Updated"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
	fmt.Printf("Page %d of %d (%s shows)\n", page.Page, page.TotalPages, humanize.Comma(int64(page.Total)))
	return nil
}

func printShow(ctx context.Context, client *apiconnect.Client, id string) error {
	resp, err := client.GetShow(ctx, id)
	if err != nil {
		return err
	}
	favorite := make(map[string]bool, len(resp.Favorites))
	for _, f := range resp.Favorites {
		favorite[f] = true
	}

	show := resp.Show
	if show == nil {
		return nil
	}
	fmt.Printf("%s\n%s\n\n", show.Title, show.Description)

	rows := [][]string{}
	for _, season := range show.Seasons {
		for _, ep := range season.Episodes {
			id := episode.ID(show.ID, season.Season, ep.Episode)
			mark := ""
			if favorite[id] {
				mark = "★"
			}
			rows = append(rows, []string{strconv.Itoa(season.Season), strconv.Itoa(ep.Episode), ep.Title, mark})
		}
	}
	fmt.Println(renderTable([]string{"Season", "Episode", "Title", "Fav"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft}))
	return nil
}

func printProgress(ctx context.Context, client *apiconnect.Client, episodeID string) error {
	resp, err := client.GetProgress(ctx, episodeID)
	if err != nil {
		return err
	}
	if episodeID != "" {
		if !resp.Found || resp.Record == nil {
			fmt.Printf("No progress saved for %s\n", episodeID)
			return nil
		}
		resp.Records = map[string]progress.Record{episodeID: *resp.Record}
	}

	ids := make([]string, 0, len(resp.Records))
	for id := range resp.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now()
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		r := resp.Records[id]
		rows = append(rows, []string{
			id,
			formatClock(r.CurrentTime) + " / " + formatClock(r.Duration),
			progressCell(r),
			lastListened(r, now),
		})
	}
	fmt.Println(renderTable([]string{"Episode", "Position", "Progress", "Last listened"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
	return nil
}

func printRecent(ctx context.Context, client *apiconnect.Client, limit int) error {
	items, err := client.ListRecentlyPlayed(ctx, limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(items))
	for i, d := range items {
		rows = append(rows, []string{strconv.Itoa(i + 1), d.EpisodeID, d.Title, d.ShowTitle})
	}
	fmt.Println(renderTable([]string{"#", "Episode", "Title", "Show"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	return nil
}

func printFavorites(ctx context.Context, client *apiconnect.Client) error {
	resp, err := client.ListFavorites(ctx, apiconnect.ListFavoritesRequest{
		Search:  *favoritesSearch,
		SortBy:  *favoritesSort,
		Order:   *favoritesOrder,
		Grouped: *favoritesGrouped,
	})
	if err != nil {
		return err
	}

	headers := []string{"Episode", "Title", "Show", "Added"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}
	if *favoritesGrouped {
		for _, g := range resp.Groups {
			rows := make([][]string, 0, len(g.Items))
			for _, f := range g.Items {
				rows = append(rows, []string{f.EpisodeID, f.EpisodeTitle, f.ShowTitle, humanize.Time(f.DateAdded)})
			}
			fmt.Printf("%s (%d)\n", g.ShowTitle, len(g.Items))
			fmt.Println(renderTable(headers, rows, aligns))
		}
	} else {
		rows := make([][]string, 0, len(resp.Items))
		for _, f := range resp.Items {
			rows = append(rows, []string{f.EpisodeID, f.EpisodeTitle, f.ShowTitle, humanize.Time(f.DateAdded)})
		}
		fmt.Println(renderTable(headers, rows, aligns))
	}
	fmt.Printf("%d favorites\n", resp.Total)
	return nil
}

func subscribe(client *apiconnect.Client, colorize bool) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Subscribed to player updates. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, func(n apiconnect.NotificationMessage) error {
		fmt.Printf("\n[%d] %s\n%s\n", n.SequenceNo, n.Type, renderStatus(n.Snapshot, colorize))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nUnsubscribed")
}
