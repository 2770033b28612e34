// Package httpserver implements the family location HTTP API.
//
// The server exposes family lifecycle endpoints (create, resolve by
// connection code, fetch), an opaque location envelope store, sharing
// settings, and an approval status endpoint with a server-sent-events
// watch stream. Health endpoints (/livez, /readyz) and drain controls
// (/drain, /undrain) support zero-downtime deploys, and Prometheus
// metrics are served on a separate listener.
//
// Location payloads are encrypted on devices before they reach this
// server. Handlers treat ciphertext and IV as opaque strings and never
// hold key material.
package httpserver
