package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jukebox"

// Collector records request pipeline metrics. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	fetches  *prometheus.CounterVec
	fetchDur *prometheus.HistogramVec
	enqueued *prometheus.CounterVec
	released prometheus.Counter
}

// Gauges are sampled at scrape time.
type Gauges struct {
	QueueLength  func() float64
	Placeholders func() float64
	RunningJobs  func() float64
	Permits      func() float64
}

// NewCollector creates a collector on its own registry, with Go and process collectors attached.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Song requests by outcome.",
		}, []string{"outcome"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Media fetches by source and result.",
		}, []string{"source", "result"}),
		fetchDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching media.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Tracks appended to the queue, by path.",
		}, []string{"path"}),
		released: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_releases_total",
			Help:      "Playback readiness permits released.",
		}),
	}
}

// RegisterGauges exposes live pipeline state. Nil functions are skipped.
func (c *Collector) RegisterGauges(g Gauges) {
	if c == nil {
		return
	}
	add := func(name, help string, fn func() float64) {
		if fn == nil {
			return
		}
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, fn))
	}
	add("queue_length", "Confirmed entries waiting to play.", g.QueueLength)
	add("placeholders", "Requests whose media is still being fetched.", g.Placeholders)
	add("running_jobs", "Fetch jobs currently running.", g.RunningJobs)
	add("readiness_permits", "Released permits not yet taken by the player.", g.Permits)
}

// Registry returns the registry to expose on /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveRequest(outcome string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveFetch(source, result string, took time.Duration) {
	if c == nil {
		return
	}
	c.fetches.WithLabelValues(source, result).Inc()
	c.fetchDur.WithLabelValues(source).Observe(took.Seconds())
}

func (c *Collector) ObserveEnqueue(path string) {
	if c == nil {
		return
	}
	c.enqueued.WithLabelValues(path).Inc()
	c.released.Inc()
}
