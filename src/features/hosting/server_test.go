package hosting

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use("/limited", RateLimitMiddleware(0.001, 2))
	app.Post("/limited", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/open", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/limited", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)

	resp, err := app.Test(httptest.NewRequest("POST", "/open", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimitMiddleware(0, 0))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestClientLimiter_PerAddress(t *testing.T) {
	l := newClientLimiter(0.001, 1)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestClientLimiter_EvictsIdleAddresses(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(0.001, 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL / 2)
	assert.False(t, l.allow("10.0.0.1"))

	now = now.Add(limiterIdleTTL / 2)
	assert.False(t, l.allow("10.0.0.1"), "an active address keeps its bucket")
	assert.Equal(t, 1, l.size(), "the idle address was dropped")

	assert.True(t, l.allow("10.0.0.2"), "a returning address starts with a full bucket")
}
