package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the config feature.
type Handler struct {
	configManager *Manager
	path          string
}

// NewHandler creates a new handler for the config feature. path is where updates are saved.
func NewHandler(configManager *Manager, path string) *Handler {
	return &Handler{
		configManager: configManager,
		path:          path,
	}
}

// RequestSettings are the pipeline settings that can change at runtime.
type RequestSettings struct {
	Voting            *bool `json:"voting"`
	WaitForDownload   *bool `json:"wait_for_download"`
	MaxDownloadSizeMB *int  `json:"max_download_size_mb"`
	LogRequesters     *bool `json:"log_requesters"`
}

// UpdateRequestSettings applies a partial update of the pipeline settings.
func (h *Handler) UpdateRequestSettings(c *fiber.Ctx) error {
	slog.Info("Configuration update requested")
	var body RequestSettings
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	updated := *h.configManager.Get()
	if body.Voting != nil {
		updated.Queue.Voting = *body.Voting
	}
	if body.WaitForDownload != nil {
		updated.Requests.WaitForDownload = *body.WaitForDownload
	}
	if body.MaxDownloadSizeMB != nil {
		updated.Requests.MaxDownloadSizeMB = *body.MaxDownloadSizeMB
	}
	if body.LogRequesters != nil {
		updated.Requests.LogRequesters = *body.LogRequesters
	}
	if err := Validate(&updated); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.configManager.Update(&updated)
	slog.Info("Configuration updated in memory")

	// Saving may fail in containerized environments
	if err := h.configManager.Save(h.path); err != nil {
		slog.Warn("failed to save config to file", "path", h.path, "error", err)
	}
	c.Set("Content-Type", "application/json")
	return c.SendString(h.configManager.GetJSON())
}

// GetConfig returns the current configuration in the requested format.
func (h *Handler) GetConfig(c *fiber.Ctx) error {
	format := c.Query("fmt", "yaml")
	slog.Debug("GetConfig handler called", "format", format)

	switch format {
	case "yaml":
		c.Set("Content-Type", "text/yaml")
		return c.SendString(h.configManager.GetYAML())
	case "json":
		c.Set("Content-Type", "application/json")
		return c.SendString(h.configManager.GetJSON())
	default:
		return c.Status(fiber.StatusBadRequest).SendString("Invalid format. Use 'json' or 'yaml'")
	}
}

// DownloadDatabase serves the archive database file for download.
func (h *Handler) DownloadDatabase(c *fiber.Ctx) error {
	dbPath := h.configManager.Get().Database.Path
	if dbPath == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Database path not configured")
	}

	filename := filepath.Base(dbPath)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Set("Content-Type", "application/octet-stream")
	return c.SendFile(dbPath)
}
