package hosting

import (
	"fmt"
	"log/slog"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/jobs"
	"github.com/contre95/jukebox/src/features/metrics"
	"github.com/contre95/jukebox/src/features/playback"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/gofiber/fiber/v2"
)

// Server is the HTTP server for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Manager, configPath string, requestService *requesting.Service, jobService *jobs.Service, playbackHandler *playback.Handler, collector *metrics.Collector) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("Internal Server Error", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
		AppName:               "Jukebox",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	app.Use(LogAllRequestsMiddleware())
	serverCfg := cfg.Get().Server
	app.Use("/musiq/request", RateLimitMiddleware(serverCfg.RequestRate, serverCfg.RequestBurst))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	requesting.RegisterRoutes(app, requestService)
	jobs.RegisterRoutes(app, jobService)
	config.RegisterRoutes(app, cfg, configPath)
	playback.RegisterRoutes(app, playbackHandler)
	if collector != nil {
		metrics.RegisterRoutes(app, metrics.NewHandler(collector))
	}

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "port", s.port)
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
