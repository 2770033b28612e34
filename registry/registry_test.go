package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/famkit/location-sharing-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *StoreRegistry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	return NewStoreRegistry(backend, logger)
}

func TestStoreRegistry_CreateAndResolve(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	assert.True(t, len(doc.ID) > len(interfaces.FamilyIDPrefix))
	assert.Equal(t, interfaces.ApprovalPending, doc.Approval)
	assert.Nil(t, doc.Location)

	// The connection code is well formed and resolves back to the family.
	code, err := interfaces.NewConnectionCode(doc.ConnectionCode.String())
	require.NoError(t, err)

	id, err := reg.ResolveConnectionCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, id)

	got, err := reg.GetFamily(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.ConnectionCode, got.ConnectionCode)
}

// failingDocumentStore wraps a backend and refuses Store for one document
// kind, recording the code-index keys it accepted.
type failingDocumentStore struct {
	interfaces.DocumentBackend
	failKind interfaces.DocumentKind
	codeKeys []string
}

func (f *failingDocumentStore) Store(ctx context.Context, kind interfaces.DocumentKind, key string, data []byte) error {
	if kind == f.failKind {
		return errors.New("store refused")
	}
	if kind == interfaces.CodeKind {
		f.codeKeys = append(f.codeKeys, key)
	}
	return f.DocumentBackend.Store(ctx, kind, key, data)
}

func TestStoreRegistry_CreateFamilyCleansUpCodeIndex(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	failing := &failingDocumentStore{DocumentBackend: backend, failKind: interfaces.FamilyKind}
	reg := NewStoreRegistry(failing, logger)

	_, err = reg.CreateFamily(context.Background(), interfaces.DefaultFamilySettings())
	require.Error(t, err)

	// The code index entry written before the failure must be gone; a
	// dangling entry would resolve to a family that does not exist.
	require.Len(t, failing.codeKeys, 1)
	_, err = backend.Fetch(context.Background(), interfaces.CodeKind, failing.codeKeys[0])
	assert.ErrorIs(t, err, interfaces.ErrDocumentNotFound)
}

func TestStoreRegistry_DistinctFamilies(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc1, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	doc2, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	assert.NotEqual(t, doc1.ID, doc2.ID)
	assert.NotEqual(t, doc1.ConnectionCode, doc2.ConnectionCode)
}

func TestStoreRegistry_ResolveUnknownCode(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.ResolveConnectionCode(context.Background(), interfaces.ConnectionCode("ZZZZZZZZ"))
	assert.ErrorIs(t, err, interfaces.ErrCodeNotFound)
}

func TestStoreRegistry_GetUnknownFamily(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.GetFamily(context.Background(), interfaces.FamilyID("f_missing"))
	assert.ErrorIs(t, err, interfaces.ErrFamilyNotFound)
}

func TestStoreRegistry_UpdateSettings(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	updated, err := reg.UpdateSettings(ctx, doc.ID, interfaces.FamilySettings{
		SharingEnabled:        false,
		UpdateIntervalSeconds: 60,
	})
	require.NoError(t, err)
	assert.False(t, updated.Settings.SharingEnabled)
	assert.Equal(t, 60, updated.Settings.UpdateIntervalSeconds)

	// The change is persisted.
	got, err := reg.GetFamily(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.Settings.SharingEnabled)
}

func TestStoreRegistry_UpdateLocation(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	envelope := interfaces.LocationEnvelope{
		Ciphertext: "b2sgY2lwaGVydGV4dA==",
		IV:         "b2sgaXY=",
	}

	updated, err := reg.UpdateLocation(ctx, doc.ID, envelope)
	require.NoError(t, err)
	require.NotNil(t, updated.Location)

	// Stored verbatim: the registry never interprets envelope fields.
	assert.Equal(t, envelope, *updated.Location)
	require.NotNil(t, updated.LocationUpdatedAt)

	t.Run("requires both fields", func(t *testing.T) {
		_, err := reg.UpdateLocation(ctx, doc.ID, interfaces.LocationEnvelope{Ciphertext: "only"})
		assert.Error(t, err)

		_, err = reg.UpdateLocation(ctx, doc.ID, interfaces.LocationEnvelope{IV: "only"})
		assert.Error(t, err)
	})

	t.Run("unknown family", func(t *testing.T) {
		_, err := reg.UpdateLocation(ctx, interfaces.FamilyID("f_missing"), envelope)
		assert.ErrorIs(t, err, interfaces.ErrFamilyNotFound)
	})
}

func TestStoreRegistry_ApprovalStatus(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	updated, err := reg.SetApprovalStatus(ctx, doc.ID, interfaces.ApprovalApproved)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ApprovalApproved, updated.Approval)

	_, err = reg.SetApprovalStatus(ctx, doc.ID, interfaces.ApprovalStatus("maybe"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidApprovalStatus)
}

func TestStoreRegistry_WatchApproval(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doc, err := reg.CreateFamily(ctx, interfaces.DefaultFamilySettings())
	require.NoError(t, err)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := reg.WatchApproval(watchCtx, doc.ID)
	require.NoError(t, err)

	_, err = reg.SetApprovalStatus(ctx, doc.ID, interfaces.ApprovalApproved)
	require.NoError(t, err)

	select {
	case status := <-ch:
		assert.Equal(t, interfaces.ApprovalApproved, status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for approval status change")
	}

	// Setting the same status again does not emit a change.
	_, err = reg.SetApprovalStatus(ctx, doc.ID, interfaces.ApprovalApproved)
	require.NoError(t, err)

	select {
	case status, ok := <-ch:
		if ok {
			t.Fatalf("unexpected status change event: %v", status)
		}
	case <-time.After(100 * time.Millisecond):
	}

	// Cancelling the watch closes the channel.
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch channel to close")
	}
}

func TestStoreRegistry_WatchUnknownFamily(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.WatchApproval(context.Background(), interfaces.FamilyID("f_missing"))
	assert.ErrorIs(t, err, interfaces.ErrFamilyNotFound)
}
