// Package metrics defines the observability interfaces for the game server.
//
// Components accept a metrics interface and treat nil as "metrics disabled",
// so collection has zero overhead when turned off. The Prometheus-backed
// implementations live in the prometheus subpackage.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry and registers
// the standard Go and process collectors. Must be called before any
// New*Metrics constructor for collection to be active.
func InitRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	enabled = true
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process-wide registry, or nil when disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetBuildInfo publishes a constant build-info gauge identifying this
// server process. No-op when metrics are disabled.
func SetBuildInfo(version, commit, instance string) {
	if !enabled {
		return
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cns_build_info",
		Help: "Build and instance information, value is always 1.",
		ConstLabels: prometheus.Labels{
			"version":  version,
			"commit":   commit,
			"instance": instance,
		},
	})
	g.Set(1)
	registry.MustRegister(g)
}

// Handler returns the HTTP handler serving the /metrics endpoint.
// Returns a 404 handler when metrics are disabled.
func Handler() http.Handler {
	if !enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
