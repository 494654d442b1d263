package playback

import "github.com/gofiber/fiber/v2"

// RegisterRoutes registers the playback routes
func RegisterRoutes(app *fiber.App, handler *Handler) {
	playback := app.Group("/playback")
	playback.Get("/entries/:id/preview", handler.GetEntryPreview)
	playback.Post("/skip", handler.Skip)
}
