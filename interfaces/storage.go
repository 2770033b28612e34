package interfaces

import (
	"context"
	"errors"
)

// DocumentKind indicates the storage namespace of a keyed record.
type DocumentKind int

const (
	// FamilyKind namespaces family documents, keyed by family ID.
	FamilyKind DocumentKind = iota
	// CodeKind namespaces the connection-code index, keyed by code and
	// holding the family ID the code resolves to.
	CodeKind
)

// String returns the namespace name used in storage paths.
func (k DocumentKind) String() string {
	switch k {
	case FamilyKind:
		return "families"
	case CodeKind:
		return "codes"
	default:
		return "unknown"
	}
}

var (
	// ErrDocumentNotFound is returned when a keyed record does not exist
	// in the storage backend.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible, due to network issues, authentication failures, or
	// service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or uses an unsupported scheme.
	// URIs follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrInvalidDocumentKey is returned when a record key contains
	// characters that cannot be used in a storage path.
	ErrInvalidDocumentKey = errors.New("invalid document key")
)

// DocumentBackend provides keyed record storage for family documents.
type DocumentBackend interface {
	// Fetch retrieves a record by kind and key.
	Fetch(ctx context.Context, kind DocumentKind, key string) ([]byte, error)

	// Store saves a record under kind and key, replacing any previous value.
	Store(ctx context.Context, kind DocumentKind, key string, data []byte) error

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, kind DocumentKind, key string) error

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

// DocumentBackendFactory creates document backends from location URIs.
type DocumentBackendFactory interface {
	// BackendFor creates a backend from a URI.
	// Supports file://, s3://, vault://
	BackendFor(locationURI string) (DocumentBackend, error)

	// CreateMultiBackend creates a replicated backend over several URIs.
	CreateMultiBackend(locationURIs []string) (DocumentBackend, error)
}
