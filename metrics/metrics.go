// Package metrics exposes Prometheus metrics on a dedicated listen address.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LocationUpdates counts accepted and rejected location envelope writes.
	LocationUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_location_updates_total",
		Help: "Location envelope updates processed, by outcome.",
	}, []string{"outcome"})

	// CodeResolutions counts connection-code lookups.
	CodeResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_code_resolutions_total",
		Help: "Connection code resolutions, by outcome.",
	}, []string{"outcome"})

	// ApprovalWatchers tracks currently connected approval watchers.
	ApprovalWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "family_approval_watchers",
		Help: "Currently connected approval-status watchers.",
	})
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, addr string) (*MetricsServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("metrics listen address must not be empty")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s metrics\n", name)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
