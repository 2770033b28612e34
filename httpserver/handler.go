package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/famkit/location-sharing-backend/api"
	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/famkit/location-sharing-backend/metrics"
	"github.com/go-chi/chi/v5"
)

// maxBodySize caps request bodies. Location envelopes and settings are tiny;
// anything beyond this is malformed or hostile.
const maxBodySize = 1024 * 1024

// Handler processes HTTP requests for the family location service. The
// service never sees plaintext locations: envelopes arrive encrypted and are
// stored and returned verbatim.
type Handler struct {
	registry interfaces.FamilyRegistry
	log      *slog.Logger
}

// NewHandler creates a handler over the given family registry.
func NewHandler(registry interfaces.FamilyRegistry, log *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
	}
}

// writeError sends a JSON error body with the given status.
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error()}); encErr != nil {
		h.log.Error("Failed to encode error response", "err", encErr)
	}
}

// statusForError maps registry errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrFamilyNotFound),
		errors.Is(err, interfaces.ErrCodeNotFound),
		errors.Is(err, interfaces.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidApprovalStatus):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) familyIDFromRequest(r *http.Request) (interfaces.FamilyID, error) {
	return interfaces.NewFamilyID(chi.URLParam(r, "family_id"))
}

// HandleCreateFamily creates a new family document.
//
// URL format: POST /api/families
// Request body (optional): JSON CreateFamilyRequest overriding default settings
// Response: JSON CreateFamilyResponse with the identifier and connection code
func (h *Handler) HandleCreateFamily(w http.ResponseWriter, r *http.Request) {
	settings := interfaces.DefaultFamilySettings()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("could not read request body: %w", err))
		return
	}
	if len(body) > 0 {
		var req api.CreateFamilyRequest
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("could not parse request body: %w", err))
			return
		}
		if req.Settings != nil {
			settings = *req.Settings
		}
	}

	doc, err := h.registry.CreateFamily(r.Context(), settings)
	if err != nil {
		h.log.Error("Failed to create family", "err", err)
		h.writeError(w, statusForError(err), fmt.Errorf("could not create family: %w", err))
		return
	}

	h.log.Info("Created family", "familyID", doc.ID.String())
	h.writeJSON(w, http.StatusCreated, api.CreateFamilyResponse{
		FamilyID:       doc.ID.String(),
		ConnectionCode: doc.ConnectionCode.String(),
	})
}

// HandleResolveCode maps a connection code to the family identifier.
//
// URL format: GET /api/families/resolve/{connection_code}
// Codes are matched case-insensitively.
// Response: JSON ResolveCodeResponse
func (h *Handler) HandleResolveCode(w http.ResponseWriter, r *http.Request) {
	code, err := interfaces.NewConnectionCode(chi.URLParam(r, "connection_code"))
	if err != nil {
		metrics.CodeResolutions.WithLabelValues("invalid").Inc()
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid connection code: %w", err))
		return
	}

	id, err := h.registry.ResolveConnectionCode(r.Context(), code)
	if err != nil {
		metrics.CodeResolutions.WithLabelValues("miss").Inc()
		h.writeError(w, statusForError(err), fmt.Errorf("could not resolve connection code: %w", err))
		return
	}

	metrics.CodeResolutions.WithLabelValues("hit").Inc()
	h.writeJSON(w, http.StatusOK, api.ResolveCodeResponse{FamilyID: id.String()})
}

// HandleGetFamily returns the full family document.
//
// URL format: GET /api/families/{family_id}
// Response: JSON FamilyDocument, location envelope included verbatim if set
func (h *Handler) HandleGetFamily(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	doc, err := h.registry.GetFamily(r.Context(), id)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not fetch family: %w", err))
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// HandleUpdateLocation stores a fresh encrypted location envelope.
//
// URL format: PUT /api/families/{family_id}/location
// Request body: JSON UpdateLocationRequest, both fields required
// The envelope is opaque to the service and stored verbatim.
func (h *Handler) HandleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		metrics.LocationUpdates.WithLabelValues("rejected").Inc()
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	var req api.UpdateLocationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		metrics.LocationUpdates.WithLabelValues("rejected").Inc()
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("could not parse request body: %w", err))
		return
	}
	if req.Ciphertext == "" || req.IV == "" {
		metrics.LocationUpdates.WithLabelValues("rejected").Inc()
		h.writeError(w, http.StatusBadRequest, errors.New("envelope requires both ciphertext and iv"))
		return
	}

	envelope := interfaces.LocationEnvelope{Ciphertext: req.Ciphertext, IV: req.IV}
	if _, err := h.registry.UpdateLocation(r.Context(), id, envelope); err != nil {
		metrics.LocationUpdates.WithLabelValues("failed").Inc()
		h.writeError(w, statusForError(err), fmt.Errorf("could not store location: %w", err))
		return
	}

	metrics.LocationUpdates.WithLabelValues("accepted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetLocation returns the stored location envelope.
//
// URL format: GET /api/families/{family_id}/location
// Response: JSON LocationResponse, 404 if no envelope has been stored yet
func (h *Handler) HandleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	doc, err := h.registry.GetFamily(r.Context(), id)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not fetch family: %w", err))
		return
	}
	if doc.Location == nil {
		h.writeError(w, http.StatusNotFound, errors.New("no location stored for family"))
		return
	}

	resp := api.LocationResponse{
		Ciphertext: doc.Location.Ciphertext,
		IV:         doc.Location.IV,
	}
	if doc.LocationUpdatedAt != nil {
		resp.UpdatedAt = doc.LocationUpdatedAt.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleUpdateSettings replaces the family's sharing settings.
//
// URL format: PUT /api/families/{family_id}/settings
// Request body: JSON FamilySettings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	var settings interfaces.FamilySettings
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("could not parse request body: %w", err))
		return
	}
	if settings.UpdateIntervalSeconds < 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("update interval must not be negative"))
		return
	}

	doc, err := h.registry.UpdateSettings(r.Context(), id, settings)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not update settings: %w", err))
		return
	}

	h.writeJSON(w, http.StatusOK, doc.Settings)
}

// HandleSetApproval updates the dependent's approval status and notifies
// connected watchers.
//
// URL format: PUT /api/families/{family_id}/approval
// Request body: JSON UpdateApprovalRequest with status pending, approved or revoked
func (h *Handler) HandleSetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	var req api.UpdateApprovalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("could not parse request body: %w", err))
		return
	}

	doc, err := h.registry.SetApprovalStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not update approval status: %w", err))
		return
	}

	h.log.Info("Approval status updated", "familyID", id.String(), "status", string(doc.Approval))
	h.writeJSON(w, http.StatusOK, api.ApprovalResponse{Status: doc.Approval})
}

// HandleWatchApproval streams approval status changes as server-sent events.
//
// URL format: GET /api/families/{family_id}/approval/watch
// Response: text/event-stream; the current status is sent immediately,
// followed by one event per change until the client disconnects.
func (h *Handler) HandleWatchApproval(w http.ResponseWriter, r *http.Request) {
	id, err := h.familyIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid family identifier: %w", err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	doc, err := h.registry.GetFamily(r.Context(), id)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not fetch family: %w", err))
		return
	}

	updates, err := h.registry.WatchApproval(r.Context(), id)
	if err != nil {
		h.writeError(w, statusForError(err), fmt.Errorf("could not watch approval status: %w", err))
		return
	}

	metrics.ApprovalWatchers.Inc()
	defer metrics.ApprovalWatchers.Dec()

	// The stream stays open until the client disconnects, so the server's
	// write deadline must not apply to it.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug("Failed to clear write deadline for watch stream", "err", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Send the current status first so clients need no separate fetch.
	if err := h.writeApprovalEvent(w, flusher, doc.Approval); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := h.writeApprovalEvent(w, flusher, status); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeApprovalEvent(w http.ResponseWriter, flusher http.Flusher, status interfaces.ApprovalStatus) error {
	if _, err := fmt.Fprintf(w, "event: approval\ndata: %s\n\n", string(status)); err != nil {
		h.log.Debug("Watch stream write failed", "err", err)
		return err
	}
	flusher.Flush()
	return nil
}
