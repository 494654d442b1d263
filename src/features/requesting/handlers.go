package requesting

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/contre95/jukebox/src/music"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the request pipeline over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// requestBody is the JSON accepted by POST /musiq/request.
type requestBody struct {
	Query string `json:"query"`
	URL   string `json:"url"`
	Key   int64  `json:"key"`
	// Archive and Manual default to true.
	Archive *bool `json:"archive"`
	Manual  *bool `json:"manual"`
	Wait    *bool `json:"wait"`
}

type voteBody struct {
	EntryID string `json:"entry_id"`
	Delta   int    `json:"delta"`
}

func (h *Handler) HandleRequest(c *fiber.Ctx) error {
	var body requestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Query) == "" && body.URL == "" && body.Key == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query, url or key is required"})
	}

	req := Request{
		Query:             body.Query,
		URL:               body.URL,
		Key:               body.Key,
		RequesterAddress:  c.IP(),
		Archive:           boolOr(body.Archive, true),
		ManuallyRequested: boolOr(body.Manual, true),
		Wait:              body.Wait,
	}
	accepted, err := h.service.HandleRequest(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	if accepted.Pending {
		return c.Status(fiber.StatusAccepted).JSON(accepted)
	}
	return c.Status(fiber.StatusOK).JSON(accepted)
}

func (h *Handler) HandleState(c *fiber.Ctx) error {
	return c.JSON(h.service.State())
}

func (h *Handler) HandleVote(c *fiber.Ctx) error {
	var body voteBody
	if err := c.BodyParser(&body); err != nil || body.EntryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entry_id is required"})
	}
	if body.Delta == 0 {
		body.Delta = 1
	}
	entry, err := h.service.Vote(c.UserContext(), body.EntryID, body.Delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(entry)
}

func (h *Handler) HandleTop(c *fiber.Ctx) error {
	tracks, err := h.service.TopTracks(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(tracks)
}

// writeError maps pipeline errors to HTTP statuses.
func writeError(c *fiber.Ctx, err error) error {
	if fe, ok := music.IsFetchError(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "not_fetchable",
			"reason": fe.Reason,
			"detail": fe.Detail,
		})
	}
	switch {
	case errors.Is(err, music.ErrUnsupportedSource):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported_source", "detail": err.Error()})
	case errors.Is(err, music.ErrNotFound), errors.Is(err, music.ErrEntryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "detail": err.Error()})
	case errors.Is(err, music.ErrCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "cancelled", "detail": err.Error()})
	case errors.Is(err, music.ErrRetrieveIncomplete):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "retrieve_incomplete", "detail": err.Error()})
	}
	slog.Error("Request handling failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
