// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/podbox/internal/api/connect"
	"github.com/osa030/podbox/internal/app/favorites"
	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/playback"
	"github.com/osa030/podbox/internal/app/player"
	appprogress "github.com/osa030/podbox/internal/app/progress"
	"github.com/osa030/podbox/internal/app/recent"
	"github.com/osa030/podbox/internal/infra/audio"
	"github.com/osa030/podbox/internal/infra/config"
	"github.com/osa030/podbox/internal/infra/logger"
	"github.com/osa030/podbox/internal/infra/podcastapi"
	"github.com/osa030/podbox/internal/infra/store"
)

const speakerSampleRate = 44100

var (
	app        = kingpin.New("podbox-server", "podbox podcast player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	checkCatalogCmd = app.Command("check-catalog", "Check that the podcast catalog is reachable and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Flags configure logging until the config file is read, then override it.
	flagLogging := logger.Config{}
	if *verbose {
		flagLogging.Level = "debug"
	}
	if *logfile != "" {
		flagLogging.Output = *logfile
		flagLogging.File = *logfile
	}
	if err := logger.Init(logger.Config{Output: "stdout", Level: "info"}.Merge(flagLogging)); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	loggerConfig := logger.Config{
		Output: cfg.Logging.Output,
		Level:  cfg.Logging.Level,
		JSON:   cfg.Logging.JSON,
	}.Merge(flagLogging)
	if err := logger.Init(loggerConfig); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	if command == checkCatalogCmd.FullCommand() {
		if err := runCheckCatalog(cfg); err != nil {
			zlog.Error().Msgf("Catalog check failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	catalogClient, err := newCatalogClient(cfg)
	if err != nil {
		return err
	}

	media, err := newMedia(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create playback backend")
	}
	zlog.Info().Msgf("Playback backend: %s", cfg.Playback.Backend)

	engine := playback.NewEngine(media, playback.Config{RepeatDelay: cfg.RepeatDelay()})
	progressLedger := appprogress.NewLedger(st, cfg.Playback.CompletionThreshold)
	recentLedger := recent.NewLedger(st, cfg.Playback.RecentCapacity)
	favoritesLedger := favorites.NewLedger(st)

	p := player.New(engine, progressLedger, recentLedger, st, notification.NewManager(), player.Config{
		DefaultVolume: cfg.Playback.DefaultVolume,
		SkipSeconds:   cfg.Playback.SkipSeconds,
		SaveInterval:  cfg.Playback.SaveIntervalSec,
	})

	ctx := context.Background()
	if err := checkCatalog(ctx, catalogClient, 1); err != nil {
		zlog.Warn().Msgf("Catalog is not reachable, browsing will fail until it recovers: %v", err)
	}

	// Create RPC services
	interceptors := connect.WithInterceptors(apiconnect.NewLoggingInterceptor())
	playerPath, playerHandler := apiconnect.NewPlayerService(p).Handler(interceptors)
	libraryPath, libraryHandler := apiconnect.NewLibraryService(catalogClient, favoritesLedger, p).Handler(interceptors)

	mux := http.NewServeMux()
	mux.Handle(playerPath, playerHandler)
	mux.Handle(libraryPath, libraryHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	serverAddr := cfg.Server.Addr
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		_ = p.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the player first so subscription streams end and progress is final.
	if err := p.Close(); err != nil {
		zlog.Error().Msgf("Failed to close player: %v", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

func newCatalogClient(cfg *config.Config) (*podcastapi.Client, error) {
	client, err := podcastapi.New(podcastapi.Config{
		BaseURL:   cfg.Catalog.BaseURL,
		Timeout:   cfg.CatalogTimeout(),
		CacheSize: cfg.Catalog.CacheSize,
		CacheTTL:  cfg.CatalogCacheTTL(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog client")
	}
	return client, nil
}

// newMedia builds the configured playback backend.
func newMedia(cfg *config.Config) (playback.Media, error) {
	fetcher := audio.NewFetcher(&http.Client{Timeout: 5 * time.Minute}, audio.DefaultMaxBytes)
	switch cfg.Playback.Backend {
	case "speaker":
		m, err := audio.NewSpeakerMedia(fetcher, speakerSampleRate, cfg.TickInterval())
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return audio.NewClockMedia(audio.NewHTTPProber(fetcher), cfg.TickInterval()), nil
	}
}

func runCheckCatalog(cfg *config.Config) error {
	client, err := newCatalogClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return checkCatalog(ctx, client, 5)
}

// checkCatalog lists the catalog, retrying with exponential backoff.
func checkCatalog(ctx context.Context, client *podcastapi.Client, maxRetries int) error {
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying catalog check in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		previews, err := client.ListPreviews(ctx)
		if err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to reach catalog (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msgf("Catalog reachable: shows=%d", len(previews))
		return nil
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
