package interfaces

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FamilyIDPrefix is the prefix of every internal family identifier.
const FamilyIDPrefix = "f_"

// FamilyID is the stable internal identifier for a family unit. It is
// obtained by resolving a shareable connection code and is the sole input
// to per-family key derivation, so it must never change once assigned.
type FamilyID string

// NewFamilyID validates a raw string as a family identifier.
func NewFamilyID(raw string) (FamilyID, error) {
	if raw == "" {
		return "", errors.New("family identifier must not be empty")
	}
	if !strings.HasPrefix(raw, FamilyIDPrefix) {
		return "", fmt.Errorf("family identifier must start with %q", FamilyIDPrefix)
	}
	return FamilyID(raw), nil
}

// String returns the raw identifier.
func (id FamilyID) String() string {
	return string(id)
}

// ConnectionCodeLength is the length of generated connection codes.
const ConnectionCodeLength = 8

// connectionCodeAlphabet excludes easily confused characters (0/O, 1/I/L).
const connectionCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// ConnectionCode is the human-shareable code a family member enters to
// locate the shared family document.
type ConnectionCode string

// NewConnectionCode validates a raw string as a connection code.
// Codes are matched case-insensitively; the canonical form is upper case.
func NewConnectionCode(raw string) (ConnectionCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != ConnectionCodeLength {
		return "", fmt.Errorf("connection code must be %d characters", ConnectionCodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(connectionCodeAlphabet, c) {
			return "", fmt.Errorf("connection code contains invalid character %q", c)
		}
	}
	return ConnectionCode(code), nil
}

// ConnectionCodeAlphabet returns the character set connection codes are
// drawn from.
func ConnectionCodeAlphabet() string {
	return connectionCodeAlphabet
}

// String returns the canonical code.
func (c ConnectionCode) String() string {
	return string(c)
}

// ApprovalStatus tracks whether the dependent has approved location sharing
// with the rest of the family.
type ApprovalStatus string

const (
	// ApprovalPending means the dependent has not yet responded.
	ApprovalPending ApprovalStatus = "pending"
	// ApprovalApproved means sharing is active.
	ApprovalApproved ApprovalStatus = "approved"
	// ApprovalRevoked means the dependent withdrew consent.
	ApprovalRevoked ApprovalStatus = "revoked"
)

// Valid reports whether the status is one of the known values.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRevoked:
		return true
	default:
		return false
	}
}

// FamilySettings holds the per-family sharing preferences.
type FamilySettings struct {
	SharingEnabled        bool `json:"sharing_enabled"`
	UpdateIntervalSeconds int  `json:"update_interval_seconds"`
}

// DefaultFamilySettings returns the settings applied to new families.
func DefaultFamilySettings() FamilySettings {
	return FamilySettings{
		SharingEnabled:        true,
		UpdateIntervalSeconds: 300,
	}
}

// LocationEnvelope is the encrypted form of a location reading: two base64
// strings that are opaque to the service. The ciphertext and IV belong
// together and must never be mixed across envelopes.
type LocationEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// FamilyDocument is the shared backend document read by family members'
// devices. The service stores and returns the location envelope verbatim;
// only clients holding the family key can interpret it.
type FamilyDocument struct {
	ID             FamilyID          `json:"family_id"`
	ConnectionCode ConnectionCode    `json:"connection_code"`
	Settings       FamilySettings    `json:"settings"`
	Approval       ApprovalStatus    `json:"approval_status"`
	Location       *LocationEnvelope `json:"location,omitempty"`

	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
}
