package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/hosting"
	"github.com/contre95/jukebox/src/features/jobs"
	"github.com/contre95/jukebox/src/features/logging"
	"github.com/contre95/jukebox/src/features/metrics"
	"github.com/contre95/jukebox/src/features/playback"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/infra/broadcast"
	"github.com/contre95/jukebox/src/infra/database"
	"github.com/contre95/jukebox/src/infra/media"
	"github.com/contre95/jukebox/src/infra/queue"
	"github.com/contre95/jukebox/src/infra/tag"
)

const configPath = "config.yaml"

func main() {
	// Load configuration
	cfgManager, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Setup default logger with slog
	logger := logging.SetupLogger(cfgManager)
	slog.SetDefault(logger)
	cfg := cfgManager.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the archive database
	archive, err := database.NewSqliteArchive(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open archive: %v", err)
	}
	defer archive.Close()

	trackQueue := queue.NewInMemoryQueue()
	placeholders := queue.NewPlaceholderRegistry()
	readiness := playback.NewSignal()
	collector := metrics.NewCollector()
	jobService := jobs.NewService(&cfg.Jobs)

	// Media sources
	var backends []requesting.MediaBackend
	if cfg.Sources.Local.Enabled {
		local, err := media.NewLocalLibrary(cfg.Sources.Local.Path)
		if err != nil {
			log.Fatalf("failed to open media directory: %v", err)
		}
		backends = append(backends, local)
	}
	if cfg.Sources.Remote.Enabled {
		backends = append(backends, media.NewRemoteDownloader(cfg.Sources.Remote))
	}
	var catalog requesting.Catalog
	if cfg.Sources.Deezer.Enabled {
		catalog = media.NewDeezerCatalog(cfg.Sources.Deezer)
	}
	factory := requesting.NewProviderFactory(cfgManager, archive, tag.NewTagReader(), tag.NewTagWriter(), catalog, backends...)

	// State observers
	hub := broadcast.NewHub()
	targets := []requesting.Broadcaster{hub}
	if cfg.Broadcast.Redis.Enabled {
		publisher, err := broadcast.NewRedisPublisher(ctx, cfg.Broadcast.Redis)
		if err != nil {
			slog.Error("Redis publisher disabled", "error", err)
		} else {
			defer publisher.Close()
			targets = append(targets, publisher)
		}
	}

	requestService := requesting.NewService(cfgManager, factory, archive, trackQueue, placeholders, jobService, broadcast.NewFanout(targets...), readiness, collector)
	jobService.RegisterHandler(requesting.FetchJobType, jobs.NewBaseTaskHandler(requesting.NewFetchTask(requestService)))

	collector.RegisterGauges(metrics.Gauges{
		QueueLength:  func() float64 { return float64(trackQueue.Len()) },
		Placeholders: func() float64 { return float64(placeholders.Len()) },
		RunningJobs:  func() float64 { return float64(jobService.Running()) },
		Permits:      func() float64 { return float64(readiness.Permits()) },
	})

	// Player
	player := playback.NewPlayer(trackQueue, readiness, playback.LogEngine{MaxPlay: 30 * time.Second}, cfgManager, requestService.BroadcastState)
	go player.Run(ctx)

	if addr := cfg.Broadcast.WebsocketAddr; addr != "" {
		go func() {
			if err := hub.Serve(ctx, addr); err != nil {
				slog.Error("State websocket stopped", "error", err)
			}
		}()
	}

	// Reload the config file on change
	watcher, err := config.NewWatcher(configPath, cfgManager, func(*config.Config) {
		requestService.BroadcastState(ctx)
	})
	if err != nil {
		slog.Warn("Config watcher disabled", "error", err)
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	// Create and start the Telegram bot if enabled
	var telegramBot *hosting.TelegramBot
	if cfg.Telegram.Enabled {
		telegramBot, err = hosting.NewTelegramBot(cfgManager, requestService, jobService)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
		} else {
			go telegramBot.Start()
			slog.Info("Telegram bot started")
		}
	}

	// Create and start the HTTP server
	playbackHandler := playback.NewHandler(playback.NewService(trackQueue), player)
	server := hosting.NewServer(cfgManager, configPath, requestService, jobService, playbackHandler, collector)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Server stopped", "error", err)
			stop()
		}
	}()
	slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfg.Server.Port)

	// Wait for a shutdown signal
	<-ctx.Done()
	slog.Info("Shutting down server...")

	if telegramBot != nil {
		telegramBot.Stop()
		slog.Info("Telegram bot stopped")
	}
	if err := server.Shutdown(); err != nil {
		slog.Error("Failed to shutdown server", "error", err)
	}

	// Running fetches finish, pending ones are dropped with their placeholders.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := jobService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Fetch jobs did not finish in time", "error", err)
	}
	slog.Info("Server gracefully shut down.")
}
