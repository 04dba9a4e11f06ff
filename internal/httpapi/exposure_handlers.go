package httpapi

import (
	"io"
	"net/http"
	"strings"

	"treasura.org/internal/audit"
	"treasura.org/internal/exposure"
)

const maxUploadBytes = 8 << 20

type exposureBulkRequest struct {
	IDs     []string `json:"ids"`
	Track   string   `json:"track"`
	Comment string   `json:"comment"`
}

func parseTrack(raw string) (exposure.Track, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "primary":
		return exposure.TrackPrimary, true
	case "bucketing":
		return exposure.TrackBucketing, true
	default:
		return exposure.TrackPrimary, false
	}
}

func (a *API) handleExposureUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	scope, ok := a.callerScope(w, r)
	if !ok {
		return
	}

	var src io.Reader
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid multipart body")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()
		src = file
	} else {
		src = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	}

	result, err := a.exposures.Upload(r.Context(), scope, src)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "exposure.upload", map[string]any{
		"inserted": result.Inserted,
	})
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleExposureList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	scope, ok := a.callerScope(w, r)
	if !ok {
		return
	}
	rows, err := a.exposures.List(r.Context(), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exposures": rows,
	})
}

func (a *API) handleExposurePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	track, ok := parseTrack(r.URL.Query().Get("track"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "track must be primary or bucketing")
		return
	}
	scope, scoped := a.callerScope(w, r)
	if !scoped {
		return
	}
	rows, err := a.exposures.Awaiting(r.Context(), scope, track)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exposures": rows,
	})
}

func (a *API) handleExposureDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req exposureBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.exposures.RequestDelete(r.Context(), req.IDs, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "exposure.delete_request", map[string]any{
		"ids": req.IDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleExposureBulkApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req exposureBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	track, ok := parseTrack(req.Track)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "track must be primary or bucketing")
		return
	}
	outcome, err := a.exposures.Approve(r.Context(), req.IDs, track, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "exposure.approve", map[string]any{
		"ids":     req.IDs,
		"track":   req.Track,
		"deleted": outcome.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  outcome.Deleted,
		"approved": outcome.Approved,
	})
}

func (a *API) handleExposureBulkReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req exposureBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	track, ok := parseTrack(req.Track)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "track must be primary or bucketing")
		return
	}
	updated, err := a.exposures.Reject(r.Context(), req.IDs, track, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "exposure.reject", map[string]any{
		"ids":   req.IDs,
		"track": req.Track,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleExposureBucketing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/exposures/bucketing/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	var req exposure.Buckets
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	row, err := a.exposures.UpdateBuckets(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "exposure.bucketing_update", map[string]any{
		"id":     id,
		"status": string(row.StatusBucketing),
	})
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleHedgingProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	scope, ok := a.callerScope(w, r)
	if !ok {
		return
	}
	proposals, err := a.exposures.HedgingProposals(r.Context(), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposals": proposals,
	})
}
