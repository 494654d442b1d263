package playback

import (
	"errors"
	"log/slog"

	"github.com/contre95/jukebox/src/music"
	"github.com/gofiber/fiber/v2"
)

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"opus": "audio/ogg",
	"m4a":  "audio/mp4",
	"wav":  "audio/wav",
}

// Handler handles playback requests
type Handler struct {
	service *Service
	player  *Player
}

// NewHandler creates a new playback handler
func NewHandler(service *Service, player *Player) *Handler {
	return &Handler{service: service, player: player}
}

// GetEntryPreview streams the first seconds of a queued entry.
func (h *Handler) GetEntryPreview(c *fiber.Ctx) error {
	entryID := c.Params("id")
	reader, format, err := h.service.Preview(entryID)
	switch {
	case errors.Is(err, music.ErrEntryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	case errors.Is(err, ErrNotLocal):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_local"})
	case err != nil:
		slog.Error("Failed to get entry preview", "entryID", entryID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "preview unavailable"})
	}

	contentType, ok := contentTypes[format]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.Set("Content-Type", contentType)
	c.Set("Cache-Control", "no-cache")
	return c.SendStream(reader)
}

// Skip stops the current entry.
func (h *Handler) Skip(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"skipped": h.player.Skip()})
}
