package registry

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/google/uuid"
)

// codeGenerationAttempts bounds the retry loop for connection-code
// collisions. The code space is ~31^8, collisions are effectively never hit.
const codeGenerationAttempts = 5

// StoreRegistry implements interfaces.FamilyRegistry on top of a keyed
// document backend. Family documents are stored as JSON under FamilyKind and
// the connection-code index under CodeKind.
//
// Read-modify-write sequences are serialized by a process-local mutex; a
// deployment with multiple writers needs a backend-level concurrency story
// and a single writing instance until then.
type StoreRegistry struct {
	store interfaces.DocumentBackend
	log   *slog.Logger

	mu  sync.Mutex
	hub *approvalHub
}

// NewStoreRegistry creates a family registry backed by the given store.
func NewStoreRegistry(store interfaces.DocumentBackend, log *slog.Logger) *StoreRegistry {
	return &StoreRegistry{
		store: store,
		log:   log,
		hub:   newApprovalHub(),
	}
}

// CreateFamily creates a new family document with a fresh identifier and a
// human-shareable connection code, and persists both the document and the
// code index entry.
func (r *StoreRegistry) CreateFamily(ctx context.Context, settings interfaces.FamilySettings) (*interfaces.FamilyDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newFamilyID()

	code, err := r.generateUnusedCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &interfaces.FamilyDocument{
		ID:             id,
		ConnectionCode: code,
		Settings:       settings,
		Approval:       interfaces.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The code index is written first: a dangling index entry resolves to a
	// not-found family, whereas a family document without an index entry can
	// never be reached by its connection code.
	if err := r.store.Store(ctx, interfaces.CodeKind, code.String(), []byte(id)); err != nil {
		return nil, fmt.Errorf("failed to store connection code index: %w", err)
	}

	if err := r.saveDocument(ctx, doc); err != nil {
		if delErr := r.store.Delete(ctx, interfaces.CodeKind, code.String()); delErr != nil {
			r.log.Warn("Failed to clean up connection code index",
				slog.String("connection_code", code.String()),
				"err", delErr)
		}
		return nil, err
	}

	r.log.Info("Created family",
		slog.String("family_id", id.String()),
		slog.String("connection_code", code.String()))

	return doc, nil
}

// ResolveConnectionCode maps a shareable code to the family identifier.
func (r *StoreRegistry) ResolveConnectionCode(ctx context.Context, code interfaces.ConnectionCode) (interfaces.FamilyID, error) {
	data, err := r.store.Fetch(ctx, interfaces.CodeKind, code.String())
	if errors.Is(err, interfaces.ErrDocumentNotFound) {
		return "", interfaces.ErrCodeNotFound
	} else if err != nil {
		return "", fmt.Errorf("failed to resolve connection code: %w", err)
	}

	return interfaces.NewFamilyID(string(data))
}

// GetFamily returns the current family document.
func (r *StoreRegistry) GetFamily(ctx context.Context, id interfaces.FamilyID) (*interfaces.FamilyDocument, error) {
	return r.loadDocument(ctx, id)
}

// UpdateSettings replaces the family's sharing settings.
func (r *StoreRegistry) UpdateSettings(ctx context.Context, id interfaces.FamilyID, settings interfaces.FamilySettings) (*interfaces.FamilyDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Settings = settings
	doc.UpdatedAt = time.Now().UTC()

	if err := r.saveDocument(ctx, doc); err != nil {
		return nil, err
	}

	r.log.Info("Updated family settings", slog.String("family_id", id.String()))
	return doc, nil
}

// SetApprovalStatus updates the dependent's approval status and notifies
// watchers.
func (r *StoreRegistry) SetApprovalStatus(ctx context.Context, id interfaces.FamilyID, status interfaces.ApprovalStatus) (*interfaces.FamilyDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrInvalidApprovalStatus, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := doc.Approval != status
	doc.Approval = status
	doc.UpdatedAt = time.Now().UTC()

	if err := r.saveDocument(ctx, doc); err != nil {
		return nil, err
	}

	if changed {
		r.hub.notify(id, status)
	}

	r.log.Info("Updated approval status",
		slog.String("family_id", id.String()),
		slog.String("status", string(status)))

	return doc, nil
}

// UpdateLocation stores a fresh encrypted location envelope. The envelope is
// opaque to the registry and stored verbatim; the two strings belong together
// and replace the previous pair atomically within the document.
func (r *StoreRegistry) UpdateLocation(ctx context.Context, id interfaces.FamilyID, envelope interfaces.LocationEnvelope) (*interfaces.FamilyDocument, error) {
	if envelope.Ciphertext == "" || envelope.IV == "" {
		return nil, fmt.Errorf("location envelope requires both ciphertext and iv")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc.Location = &envelope
	doc.LocationUpdatedAt = &now
	doc.UpdatedAt = now

	if err := r.saveDocument(ctx, doc); err != nil {
		return nil, err
	}

	r.log.Debug("Updated location envelope", slog.String("family_id", id.String()))
	return doc, nil
}

// WatchApproval subscribes to approval status changes for a family. The
// returned channel is closed when ctx is cancelled.
func (r *StoreRegistry) WatchApproval(ctx context.Context, id interfaces.FamilyID) (<-chan interfaces.ApprovalStatus, error) {
	// Fail fast for unknown families rather than watching silence.
	if _, err := r.loadDocument(ctx, id); err != nil {
		return nil, err
	}

	return r.hub.subscribe(ctx, id), nil
}

func (r *StoreRegistry) loadDocument(ctx context.Context, id interfaces.FamilyID) (*interfaces.FamilyDocument, error) {
	data, err := r.store.Fetch(ctx, interfaces.FamilyKind, id.String())
	if errors.Is(err, interfaces.ErrDocumentNotFound) {
		return nil, interfaces.ErrFamilyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch family document: %w", err)
	}

	var doc interfaces.FamilyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode family document: %w", err)
	}

	return &doc, nil
}

func (r *StoreRegistry) saveDocument(ctx context.Context, doc *interfaces.FamilyDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode family document: %w", err)
	}

	if err := r.store.Store(ctx, interfaces.FamilyKind, doc.ID.String(), data); err != nil {
		return fmt.Errorf("failed to store family document: %w", err)
	}
	return nil
}

// generateUnusedCode draws random connection codes until one is free.
func (r *StoreRegistry) generateUnusedCode(ctx context.Context) (interfaces.ConnectionCode, error) {
	for i := 0; i < codeGenerationAttempts; i++ {
		code, err := generateConnectionCode()
		if err != nil {
			return "", err
		}

		_, err = r.store.Fetch(ctx, interfaces.CodeKind, code.String())
		if errors.Is(err, interfaces.ErrDocumentNotFound) {
			return code, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check connection code: %w", err)
		}

		r.log.Warn("Connection code collision, retrying", slog.String("code", code.String()))
	}

	return "", fmt.Errorf("failed to generate an unused connection code")
}

// newFamilyID generates a fresh family identifier.
func newFamilyID() interfaces.FamilyID {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return interfaces.FamilyID(interfaces.FamilyIDPrefix + raw)
}

// generateConnectionCode draws a code from the connection-code alphabet
// using the process-wide secure random source.
func generateConnectionCode() (interfaces.ConnectionCode, error) {
	alphabet := interfaces.ConnectionCodeAlphabet()
	max := big.NewInt(int64(len(alphabet)))

	var sb strings.Builder
	for i := 0; i < interfaces.ConnectionCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate connection code: %w", err)
		}
		sb.WriteByte(alphabet[n.Int64()])
	}

	return interfaces.ConnectionCode(sb.String()), nil
}
