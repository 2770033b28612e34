package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/famkit/location-sharing-backend/interfaces"
)

// DocumentBackendFactory creates document backends from URI strings and
// manages multi-backend configurations for replicated storage.
type DocumentBackendFactory struct {
	log        *slog.Logger
	clientCert *tls.Certificate
}

// NewDocumentBackendFactory creates a new factory instance.
func NewDocumentBackendFactory(logger *slog.Logger) *DocumentBackendFactory {
	return &DocumentBackendFactory{log: logger}
}

// WithTLSAuth returns a factory that passes the given client certificate to
// backends supporting TLS client authentication (currently Vault).
func (sf *DocumentBackendFactory) WithTLSAuth(cert tls.Certificate) *DocumentBackendFactory {
	return &DocumentBackendFactory{log: sf.log, clientCert: &cert}
}

// BackendFor creates a document backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 secret engine
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *DocumentBackendFactory) BackendFor(locationURI string) (interfaces.DocumentBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return sf.createFileBackend(u)
	case "s3":
		return sf.createS3Backend(u)
	case "vault":
		return sf.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates a replicated backend from a list of location
// URIs. Writes go to all valid backends and reads fall back through them.
// Returns an error if no valid backends could be created.
func (sf *DocumentBackendFactory) CreateMultiBackend(locationURIs []string) (interfaces.DocumentBackend, error) {
	backends := make([]interfaces.DocumentBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.BackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiBackend(backends, sf.log), nil
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *DocumentBackendFactory) createFileBackend(u *url.URL) (interfaces.DocumentBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("empty path in file URI: %s", u.String())
	}

	return NewFileBackend(path, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (sf *DocumentBackendFactory) createS3Backend(u *url.URL) (interfaces.DocumentBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", u.String()))

	bucketName := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := query.Get("endpoint")

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
		sf.log.Debug("Using embedded credentials for write access")
	} else {
		sf.log.Debug("No credentials provided, S3 bucket assumed to be public, write operations may fail")
	}

	return NewS3Backend(bucketName, prefix, region, endpoint, accessKey, secretKey, sf.log)
}

// createVaultBackend creates a HashiCorp Vault storage backend.
// URI format: vault://vault.example.com:8200/secret/families?scheme=https
// The Vault token is read from the VAULT_TOKEN environment variable.
func (sf *DocumentBackendFactory) createVaultBackend(u *url.URL) (interfaces.DocumentBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", u.String()))

	scheme := u.Query().Get("scheme")
	if scheme == "" {
		scheme = "https"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI must include mount and data path", interfaces.ErrInvalidLocationURI)
	}
	mountPath, dataPath := parts[0], parts[1]

	token := os.Getenv("VAULT_TOKEN")

	return NewVaultBackend(address, mountPath, dataPath, token, sf.clientCert, sf.log)
}
