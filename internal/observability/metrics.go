// Package observability wires the Prometheus registry and its collectors.
// Error telemetry is handled by the Sentry reporter in the errors package.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/observability/metrics"
)

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry  *prometheus.Registry
	PestNet   *metrics.PestNetMetrics
	HTTP      *metrics.HTTPMetrics
	Datastore *metrics.DatastoreMetrics
}

// NewMetrics creates a registry with process, Go runtime and service collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pestnetMetrics, err := metrics.NewPestNetMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pestnet metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		PestNet:   pestnetMetrics,
		HTTP:      httpMetrics,
		Datastore: datastoreMetrics,
	}, nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promLogger adapts the module logger to promhttp's Println logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Warn("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
