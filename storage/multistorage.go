package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/famkit/location-sharing-backend/interfaces"
)

// MultiBackend implements interfaces.DocumentBackend over multiple backends.
// Writes are replicated to every available backend; reads fall back through
// the backends in order.
type MultiBackend struct {
	backends []interfaces.DocumentBackend
	log      *slog.Logger
}

// NewMultiBackend creates a replicated document backend.
func NewMultiBackend(backends []interfaces.DocumentBackend, logger *slog.Logger) *MultiBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the record from the first backend that has it. A backend
// reporting not-found is skipped; only when every backend misses does the
// multi-backend report not-found.
func (m *MultiBackend) Fetch(ctx context.Context, kind interfaces.DocumentKind, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	consulted := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key))
			continue
		}
		consulted++

		data, err := backend.Fetch(ctx, kind, key)
		if err == nil {
			m.log.Debug("Fetched record",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", key),
			"err", err)
	}

	if consulted == 0 {
		return nil, fmt.Errorf("%w: no backend reachable", interfaces.ErrBackendUnavailable)
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrDocumentNotFound
	}

	m.log.Error("All backends failed to fetch record",
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s/%s: %v", kind, key, errs)
}

// Store saves the record to every available backend. The write succeeds if at
// least one backend accepts it.
func (m *MultiBackend) Store(ctx context.Context, kind interfaces.DocumentKind, key string, data []byte) error {
	start := time.Now()
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Store(ctx, kind, key, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		success = true
	}

	if !success {
		m.log.Error("All backends failed to store record",
			slog.String("key", key),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("all backends failed to store %s/%s: %v", kind, key, errs)
	}

	if len(errs) > 0 {
		m.log.Warn("Record stored to a subset of backends",
			slog.String("key", key),
			slog.Int("failed_backends", len(errs)))
	}

	return nil
}

// Delete removes the record from every available backend.
func (m *MultiBackend) Delete(ctx context.Context, kind interfaces.DocumentKind, key string) error {
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		if err := backend.Delete(ctx, kind, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete %s/%s from some backends: %v", kind, key, errs)
	}
	return nil
}

// Available checks if any backend is available.
func (m *MultiBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend.
func (m *MultiBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined URI of all underlying backends.
func (m *MultiBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
