package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	// duration is partitioned by route and method. It uses custom
	// buckets based on the expected OCR latency.
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	passes   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ocr_in_flight_requests",
			Help: "Number of currently processed requests.",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_http_requests_total",
				Help: "A counter for HTTP requests.",
			},
			[]string{"code", "method", "path"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ocr_http_request_duration_seconds",
				Help:    "A histogram of latencies for requests.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"path", "method"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_pipeline_runs_total",
				Help: "OCR pipeline runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocr_engine_passes_total",
			Help: "Number of times the OCR engine was invoked by the pipeline.",
		}),
	}
	m.registry.MustRegister(
		m.inFlight, m.requests, m.duration, m.runs, m.passes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in Prometheus' text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records in-flight requests, status codes and latencies.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(strconv.Itoa(c.Writer.Status()), c.Request.Method, path).Inc()
		m.duration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveRun counts a pipeline run.
func (m *Metrics) ObserveRun(mode, outcome string, passes int) {
	m.runs.WithLabelValues(mode, outcome).Inc()
	m.passes.Add(float64(passes))
}
