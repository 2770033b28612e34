package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/famkit/location-sharing-backend/api"
	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/famkit/location-sharing-backend/locationcrypto"
	"github.com/famkit/location-sharing-backend/registry"
	"github.com/famkit/location-sharing-backend/storage"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnvironment builds a handler over a real registry with file
// storage in a temporary directory.
func setupTestEnvironment(t *testing.T) (*Handler, chi.Router) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	reg := registry.NewStoreRegistry(backend, logger)
	handler := NewHandler(reg, logger)

	mux := chi.NewRouter()
	mux.Post("/api/families", handler.HandleCreateFamily)
	mux.Get("/api/families/resolve/{connection_code}", handler.HandleResolveCode)
	mux.Get("/api/families/{family_id}", handler.HandleGetFamily)
	mux.Put("/api/families/{family_id}/location", handler.HandleUpdateLocation)
	mux.Get("/api/families/{family_id}/location", handler.HandleGetLocation)
	mux.Put("/api/families/{family_id}/settings", handler.HandleUpdateSettings)
	mux.Put("/api/families/{family_id}/approval", handler.HandleSetApproval)
	mux.Get("/api/families/{family_id}/approval/watch", handler.HandleWatchApproval)

	return handler, mux
}

func createTestFamily(t *testing.T, mux chi.Router) api.CreateFamilyResponse {
	req := httptest.NewRequest(http.MethodPost, "/api/families", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.CreateFamilyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.FamilyID)
	require.Len(t, resp.ConnectionCode, interfaces.ConnectionCodeLength)
	return resp
}

func TestHandleCreateFamily_Defaults(t *testing.T) {
	_, mux := setupTestEnvironment(t)

	created := createTestFamily(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/families/"+created.FamilyID, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc interfaces.FamilyDocument
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, created.FamilyID, doc.ID.String())
	assert.Equal(t, interfaces.ApprovalPending, doc.Approval)
	assert.Equal(t, interfaces.DefaultFamilySettings(), doc.Settings)
	assert.Nil(t, doc.Location)
}

func TestHandleCreateFamily_CustomSettings(t *testing.T) {
	_, mux := setupTestEnvironment(t)

	body, err := json.Marshal(api.CreateFamilyRequest{
		Settings: &interfaces.FamilySettings{SharingEnabled: false, UpdateIntervalSeconds: 60},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/families", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.CreateFamilyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	getReq := httptest.NewRequest(http.MethodGet, "/api/families/"+resp.FamilyID, nil)
	getW := httptest.NewRecorder()
	mux.ServeHTTP(getW, getReq)
	require.Equal(t, http.StatusOK, getW.Code)

	var doc interfaces.FamilyDocument
	require.NoError(t, json.NewDecoder(getW.Body).Decode(&doc))
	assert.False(t, doc.Settings.SharingEnabled)
	assert.Equal(t, 60, doc.Settings.UpdateIntervalSeconds)
}

func TestHandleResolveCode(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	// Lower-case input resolves too
	path := "/api/families/resolve/" + strings.ToLower(created.ConnectionCode)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ResolveCodeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, created.FamilyID, resp.FamilyID)
}

func TestHandleResolveCode_Errors(t *testing.T) {
	_, mux := setupTestEnvironment(t)

	// Malformed code
	req := httptest.NewRequest(http.MethodGet, "/api/families/resolve/ab", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Well-formed but unknown code
	req = httptest.NewRequest(http.MethodGet, "/api/families/resolve/BBBBBBBB", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetFamily_Errors(t *testing.T) {
	_, mux := setupTestEnvironment(t)

	// Bad identifier shape
	req := httptest.NewRequest(http.MethodGet, "/api/families/notanid", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown family
	req = httptest.NewRequest(http.MethodGet, "/api/families/f_deadbeef", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestLocationEnvelopeFlow exercises the full device flow: derive a family
// key, encrypt a reading, upload the envelope, download it, and decrypt.
func TestLocationEnvelopeFlow(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	key, err := locationcrypto.DeriveKey(created.FamilyID)
	require.NoError(t, err)

	reading := locationcrypto.LocationReading{
		Latitude:  37.7749,
		Longitude: -122.4194,
		Address:   "San Francisco, CA",
	}
	envelope, err := locationcrypto.Encrypt(reading, key)
	require.NoError(t, err)

	body, err := json.Marshal(api.UpdateLocationRequest{
		Ciphertext: envelope.Ciphertext,
		IV:         envelope.IV,
	})
	require.NoError(t, err)

	putReq := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/location", created.FamilyID),
		bytes.NewReader(body))
	putW := httptest.NewRecorder()
	mux.ServeHTTP(putW, putReq)
	require.Equal(t, http.StatusNoContent, putW.Code)

	getReq := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/families/%s/location", created.FamilyID), nil)
	getW := httptest.NewRecorder()
	mux.ServeHTTP(getW, getReq)
	require.Equal(t, http.StatusOK, getW.Code)

	var resp api.LocationResponse
	require.NoError(t, json.NewDecoder(getW.Body).Decode(&resp))
	assert.Equal(t, envelope.Ciphertext, resp.Ciphertext)
	assert.Equal(t, envelope.IV, resp.IV)
	assert.NotEmpty(t, resp.UpdatedAt)

	decrypted, err := locationcrypto.Decrypt(locationcrypto.EncryptedEnvelope{
		Ciphertext: resp.Ciphertext,
		IV:         resp.IV,
	}, key)
	require.NoError(t, err)
	assert.Equal(t, reading, decrypted)
}

func TestHandleUpdateLocation_Errors(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	// Missing IV
	body, _ := json.Marshal(api.UpdateLocationRequest{Ciphertext: "YWJj"})
	req := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/location", created.FamilyID),
		bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown family
	body, _ = json.Marshal(api.UpdateLocationRequest{Ciphertext: "YWJj", IV: "aXY="})
	req = httptest.NewRequest(http.MethodPut, "/api/families/f_unknown/location", bytes.NewReader(body))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetLocation_NoneStored(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/families/%s/location", created.FamilyID), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleUpdateSettings(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	body, _ := json.Marshal(interfaces.FamilySettings{SharingEnabled: false, UpdateIntervalSeconds: 900})
	req := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/settings", created.FamilyID),
		bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var settings interfaces.FamilySettings
	require.NoError(t, json.NewDecoder(w.Body).Decode(&settings))
	assert.False(t, settings.SharingEnabled)
	assert.Equal(t, 900, settings.UpdateIntervalSeconds)

	// Negative interval rejected
	body, _ = json.Marshal(interfaces.FamilySettings{UpdateIntervalSeconds: -1})
	req = httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/settings", created.FamilyID),
		bytes.NewReader(body))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSetApproval(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	body, _ := json.Marshal(api.UpdateApprovalRequest{Status: interfaces.ApprovalApproved})
	req := httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/approval", created.FamilyID),
		bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ApprovalResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, interfaces.ApprovalApproved, resp.Status)

	// Unknown status value rejected
	body, _ = json.Marshal(api.UpdateApprovalRequest{Status: "maybe"})
	req = httptest.NewRequest(http.MethodPut,
		fmt.Sprintf("/api/families/%s/approval", created.FamilyID),
		bytes.NewReader(body))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// streamEvents splits an event-stream body into its blank-line separated
// events.
func streamEvents(body io.Reader) <-chan string {
	events := make(chan string, 4)
	go func() {
		buf := make([]byte, 1024)
		var pending string
		for {
			n, err := body.Read(buf)
			if n > 0 {
				pending += string(buf[:n])
				for {
					idx := strings.Index(pending, "\n\n")
					if idx < 0 {
						break
					}
					events <- pending[:idx]
					pending = pending[idx+2:]
				}
			}
			if err != nil {
				close(events)
				return
			}
		}
	}()
	return events
}

// TestHandleWatchApproval streams over a real HTTP server so the SSE
// flushing path is exercised end to end.
func TestHandleWatchApproval(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/families/%s/approval/watch", server.URL, created.FamilyID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := streamEvents(resp.Body)

	// Initial snapshot event carries the pending status
	select {
	case ev := <-events:
		assert.Contains(t, ev, "data: pending")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial approval event")
	}

	// Update the status through the API and expect a change event
	body, _ := json.Marshal(api.UpdateApprovalRequest{Status: interfaces.ApprovalApproved})
	putReq, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/families/%s/approval", server.URL, created.FamilyID),
		bytes.NewReader(body))
	require.NoError(t, err)
	putReq.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(putReq)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	select {
	case ev := <-events:
		assert.Contains(t, ev, "data: approved")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for approval change event")
	}
}

// TestHandleWatchApproval_OutlivesWriteTimeout holds a watch stream open past
// the server's write deadline and verifies later status changes still arrive.
func TestHandleWatchApproval_OutlivesWriteTimeout(t *testing.T) {
	_, mux := setupTestEnvironment(t)
	created := createTestFamily(t, mux)

	server := httptest.NewUnstartedServer(mux)
	server.Config.WriteTimeout = 500 * time.Millisecond
	server.Start()
	defer server.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/families/%s/approval/watch", server.URL, created.FamilyID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := streamEvents(resp.Body)

	select {
	case ev := <-events:
		assert.Contains(t, ev, "data: pending")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial approval event")
	}

	// Let the server's write deadline lapse before triggering a change.
	time.Sleep(time.Second)

	body, _ := json.Marshal(api.UpdateApprovalRequest{Status: interfaces.ApprovalApproved})
	putReq, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/families/%s/approval", server.URL, created.FamilyID),
		bytes.NewReader(body))
	require.NoError(t, err)
	putReq.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(putReq)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	select {
	case ev, ok := <-events:
		require.True(t, ok, "watch stream closed instead of delivering the change")
		assert.Contains(t, ev, "data: approved")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for approval change event")
	}
}

func TestHandleWatchApproval_UnknownFamily(t *testing.T) {
	_, mux := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/families/f_unknown/approval/watch", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
