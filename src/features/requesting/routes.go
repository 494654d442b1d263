package requesting

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)
	musiq := app.Group("/musiq")
	musiq.Post("/request", handler.HandleRequest)
	musiq.Get("/state", handler.HandleState)
	musiq.Post("/vote", handler.HandleVote)
	musiq.Get("/top", handler.HandleTop)
}
