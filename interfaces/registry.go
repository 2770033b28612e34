package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrFamilyNotFound is returned when no family exists for an identifier.
	ErrFamilyNotFound = errors.New("family not found")

	// ErrCodeNotFound is returned when a connection code resolves to nothing.
	ErrCodeNotFound = errors.New("connection code not found")

	// ErrInvalidApprovalStatus is returned when an approval update names an
	// unknown status value.
	ErrInvalidApprovalStatus = errors.New("invalid approval status")
)

// FamilyRegistry manages family documents: creation, lookup by connection
// code, settings and approval updates, and the opaque location envelope.
type FamilyRegistry interface {
	// CreateFamily creates a new family document with a fresh identifier
	// and connection code.
	CreateFamily(ctx context.Context, settings FamilySettings) (*FamilyDocument, error)

	// ResolveConnectionCode maps a shareable code to the family identifier.
	ResolveConnectionCode(ctx context.Context, code ConnectionCode) (FamilyID, error)

	// GetFamily returns the current family document.
	GetFamily(ctx context.Context, id FamilyID) (*FamilyDocument, error)

	// UpdateSettings replaces the family's sharing settings.
	UpdateSettings(ctx context.Context, id FamilyID, settings FamilySettings) (*FamilyDocument, error)

	// SetApprovalStatus updates the dependent's approval status and
	// notifies watchers.
	SetApprovalStatus(ctx context.Context, id FamilyID, status ApprovalStatus) (*FamilyDocument, error)

	// UpdateLocation stores a fresh encrypted location envelope verbatim.
	UpdateLocation(ctx context.Context, id FamilyID, envelope LocationEnvelope) (*FamilyDocument, error)

	// WatchApproval subscribes to approval status changes for a family.
	// The channel is closed when ctx is cancelled.
	WatchApproval(ctx context.Context, id FamilyID) (<-chan ApprovalStatus, error)
}
