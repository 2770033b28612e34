package api

import (
	"github.com/famkit/location-sharing-backend/interfaces"
)

// CreateFamilyRequest optionally overrides the default sharing settings for
// a new family. An empty body is accepted.
type CreateFamilyRequest struct {
	Settings *interfaces.FamilySettings `json:"settings,omitempty"`
}

// CreateFamilyResponse returns the new family's identifier and its
// human-shareable connection code.
type CreateFamilyResponse struct {
	FamilyID       string `json:"family_id"`
	ConnectionCode string `json:"connection_code"`
}

// ResolveCodeResponse maps a connection code back to the family identifier.
type ResolveCodeResponse struct {
	FamilyID string `json:"family_id"`
}

// UpdateLocationRequest carries a fresh encrypted location envelope. Both
// fields are opaque base64 strings produced by the client-side crypto; the
// service stores them verbatim.
type UpdateLocationRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// LocationResponse returns the stored envelope together with its update time.
type LocationResponse struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// UpdateApprovalRequest sets the dependent's approval status.
type UpdateApprovalRequest struct {
	Status interfaces.ApprovalStatus `json:"status"`
}

// ApprovalResponse returns the current approval status.
type ApprovalResponse struct {
	Status interfaces.ApprovalStatus `json:"status"`
}

// ErrorResponse is the JSON body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FamilyProvider abstracts HTTP access to the family document service,
// implemented by clients.FamilyClient and mocked in tests.
type FamilyProvider interface {
	// CreateFamily creates a new family document.
	CreateFamily(settings *interfaces.FamilySettings) (*CreateFamilyResponse, error)

	// ResolveCode maps a connection code to a family identifier.
	ResolveCode(code string) (*ResolveCodeResponse, error)

	// GetFamily returns the full family document.
	GetFamily(familyID string) (*interfaces.FamilyDocument, error)

	// UpdateLocation stores a fresh encrypted envelope.
	UpdateLocation(familyID string, envelope interfaces.LocationEnvelope) error

	// GetLocation returns the stored envelope.
	GetLocation(familyID string) (*LocationResponse, error)

	// UpdateSettings replaces the family's sharing settings.
	UpdateSettings(familyID string, settings interfaces.FamilySettings) error

	// SetApproval updates the approval status.
	SetApproval(familyID string, status interfaces.ApprovalStatus) error
}
