package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gemini_proxy"

// Upstream error stages.
const (
	StageConnect = "connect"
	StageStream  = "stream"
)

// Collectors holds the proxy's Prometheus collectors, registered against a
// private registry.
type Collectors struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	credentialSource *prometheus.CounterVec
	responseTime     prometheus.Histogram
	requestBytes     prometheus.Counter
	responseBytes    prometheus.Counter
}

// New creates and registers the proxy collectors, along with the standard Go
// runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Proxied requests by response code and method.",
			},
			[]string{"code", "method"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Upstream failures by the stage at which they occurred.",
			},
			[]string{"stage"},
		),
		credentialSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_source_total",
				Help:      "Requests by the header convention that supplied their credentials.",
			},
			[]string{"kind"},
		),
		responseTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_time_seconds",
				Help:      "Time from receiving a request to sending the last byte of its response.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		requestBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_bytes_total",
				Help:      "Request body bytes forwarded upstream.",
			},
		),
		responseBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "response_bytes_total",
				Help:      "Response body bytes relayed to callers.",
			},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requests,
		c.upstreamErrors,
		c.credentialSource,
		c.responseTime,
		c.requestBytes,
		c.responseBytes,
	)

	return c
}

// Registry returns the registry the collectors are registered with.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics handler.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed request. It is safe to call on a nil
// receiver.
func (c *Collectors) ObserveRequest(
	method string,
	statusCode int,
	elapsed time.Duration,
	bytesIn, bytesOut int64,
) {
	if c == nil {
		return
	}

	c.requests.WithLabelValues(strconv.Itoa(statusCode), method).Inc()
	c.responseTime.Observe(elapsed.Seconds())
	c.requestBytes.Add(float64(bytesIn))
	c.responseBytes.Add(float64(bytesOut))
}

// ObserveCredentialSource records the credential convention of a request.
func (c *Collectors) ObserveCredentialSource(kind string) {
	if c == nil {
		return
	}

	c.credentialSource.WithLabelValues(kind).Inc()
}

// ObserveUpstreamError records an upstream failure at the given stage.
func (c *Collectors) ObserveUpstreamError(stage string) {
	if c == nil {
		return
	}

	c.upstreamErrors.WithLabelValues(stage).Inc()
}
