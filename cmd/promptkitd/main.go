// Package main provides the promptkit server entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/promptkit/promptkit/internal/config"
	"github.com/promptkit/promptkit/internal/db"
	"github.com/promptkit/promptkit/internal/llm"
	"github.com/promptkit/promptkit/internal/llm/openai"
	"github.com/promptkit/promptkit/internal/scheduler"
	"github.com/promptkit/promptkit/internal/server"
	"github.com/promptkit/promptkit/internal/server/sse"
	"github.com/promptkit/promptkit/internal/session"
	"github.com/promptkit/promptkit/internal/watcher"
	"github.com/promptkit/promptkit/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	dbPath := flag.String("db", "", "Database path (default: ~/.promptkit/promptkit.db)")
	port := flag.Int("port", 0, "HTTP port (overrides settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directories")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.Port = *port
	}

	path := config.DBPath()
	if *dbPath != "" {
		path = *dbPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	store, err := db.NewStore(db.Config{
		Path:     path,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer store.Close()

	exportStore := db.NewExportStore(store)

	sched := scheduler.New(db.NewTaskStore(store), int64(cfg.MaxTasks))
	broadcaster := sse.NewBroadcaster()
	manager := session.NewManager(store, sched, broadcaster)

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
	})
	worker.New(manager, provider).Register(sched)

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	startSettingsWatcher(cancel)

	svc := server.NewService(Version, cfg, manager, exportStore, broadcaster)
	go func() {
		if err := svc.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown error")
	}
}

// startSettingsWatcher exits the serve loop when settings change so a
// supervisor can restart the process with fresh configuration.
func startSettingsWatcher(cancel context.CancelFunc) {
	settingsWatcher, err := watcher.New(config.SettingsPath(), func() {
		log.Info().Msg("Settings changed, shutting down for restart")
		cancel()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create settings watcher")
		return
	}
	if err := settingsWatcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start settings watcher")
		return
	}
	log.Info().Str("path", config.SettingsPath()).Msg("Settings watcher started")
}
