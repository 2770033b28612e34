// Package storage provides keyed document storage with pluggable backends.
//
// The storage package offers a unified interface for storing and retrieving
// family documents and the connection-code index across multiple backends:
//
//   - File system storage for local development and testing
//   - S3-compatible storage for cloud deployments
//   - HashiCorp Vault (KV v2) for deployments that keep documents in a vault
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/famkit/documents/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - vault://vault.example.com:8200/secret/families
//
// # Record Namespaces
//
// Records are keyed strings namespaced by DocumentKind: family documents
// (keyed by family ID) and connection-code index entries (keyed by code).
// Backends place each namespace in its own directory, object prefix, or
// Vault path segment.
//
// # Replication
//
// MultiBackend aggregates several backends: writes are replicated to all
// available backends and reads fall back through them in order, so a single
// unavailable backend does not take the document store down.
//
// Family documents contain only opaque, client-encrypted location envelopes;
// no backend ever holds plaintext coordinates.
package storage
