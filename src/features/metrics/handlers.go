package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the prometheus scrape endpoint.
type Handler struct {
	collector *Collector
}

// NewHandler creates a new metrics handler.
func NewHandler(collector *Collector) *Handler {
	return &Handler{collector: collector}
}

// Scrape returns the fiber handler for /metrics.
func (h *Handler) Scrape() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(h.collector.Registry(), promhttp.HandlerOpts{}))
}
