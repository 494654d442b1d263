package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CountsAndScrape(t *testing.T) {
	c := NewCollector()
	c.RegisterGauges(Gauges{QueueLength: func() float64 { return 3 }})
	c.ObserveRequest("accepted")
	c.ObserveRequest("accepted")
	c.ObserveFetch("remote", "ok", 2*time.Second)
	c.ObserveEnqueue("cached")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.released))

	app := fiber.New()
	RegisterRoutes(app, NewHandler(c))
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "jukebox_queue_length 3")
	assert.Contains(t, string(body), `jukebox_fetches_total{result="ok",source="remote"} 1`)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveRequest("x")
	c.ObserveFetch("x", "y", time.Second)
	c.ObserveEnqueue("x")
	c.RegisterGauges(Gauges{})
}
