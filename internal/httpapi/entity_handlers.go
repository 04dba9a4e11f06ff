package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"treasura.org/internal/audit"
	"treasura.org/internal/hierarchy"
)

type entityBulkRequest struct {
	EntityIDs []string `json:"entityIds"`
	Comment   string   `json:"comment"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (a *API) handleEntityCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req hierarchy.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entity, err := a.entities.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.create", map[string]any{
		"entity_id":   entity.EntityID,
		"entity_name": entity.EntityName,
	})
	w.Header().Set("Location", "/api/entity/"+entity.EntityID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"entity_id": entity.EntityID,
	})
}

func (a *API) handleEntitySync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	result, err := a.entities.SyncRelationships(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.sync_relationships", map[string]any{
		"relationships_added": result.RelationshipsAdded,
	})
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleEntityHierarchy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	forest, err := a.entities.Hierarchy(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hierarchy": forest,
	})
}

func (a *API) handleEntityNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	names, err := a.entities.Names(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"names": names,
	})
}

func (a *API) handleEntityParents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("level"))
	level, err := strconv.Atoi(raw)
	if err != nil || level < 0 {
		writeError(w, r, http.StatusBadRequest, "level must be a non-negative integer")
		return
	}
	names, err := a.entities.ParentCandidates(r.Context(), level)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parents": names,
	})
}

func (a *API) handleEntityDeleteBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req entityBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.entities.RequestDeleteBulk(r.Context(), req.EntityIDs, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.delete_request", map[string]any{
		"entity_ids": req.EntityIDs,
		"affected":   len(updated),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleEntityApproveBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req entityBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := a.entities.ApproveBulk(r.Context(), req.EntityIDs, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.approve", map[string]any{
		"entity_ids": req.EntityIDs,
		"deleted":    outcome.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  outcome.Deleted,
		"approved": outcome.Approved,
	})
}

func (a *API) handleEntityRejectBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req entityBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.entities.RejectBulk(r.Context(), req.EntityIDs, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.reject", map[string]any{
		"entity_ids": req.EntityIDs,
		"affected":   len(updated),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleEntityScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/entity/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if len(parts) == 1 {
		a.handleEntityGet(w, r, parts[0])
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	verb, id := parts[0], parts[1]
	switch verb {
	case "update":
		a.handleEntityUpdate(w, r, id)
	case "delete":
		a.handleEntityDelete(w, r, id)
	case "approve":
		a.handleEntityApprove(w, r, id)
	case "reject":
		a.handleEntityReject(w, r, id)
	case "descendants":
		a.handleEntityDescendants(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleEntityGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	entity, err := a.entities.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (a *API) handleEntityUpdate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req hierarchy.Update
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entity, err := a.entities.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.update", map[string]any{
		"entity_id": id,
		"status":    string(entity.ApprovalStatus),
	})
	writeJSON(w, http.StatusOK, entity)
}

func (a *API) handleEntityDelete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.entities.RequestDelete(r.Context(), id, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.delete_request", map[string]any{
		"entity_id": id,
		"affected":  len(updated),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleEntityApprove(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := a.entities.Approve(r.Context(), id, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.approve", map[string]any{
		"entity_id": id,
		"deleted":   outcome.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  outcome.Deleted,
		"approved": outcome.Approved,
	})
}

func (a *API) handleEntityReject(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entity, err := a.entities.Reject(r.Context(), id, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "entity.reject", map[string]any{
		"entity_id": id,
	})
	writeJSON(w, http.StatusOK, entity)
}

func (a *API) handleEntityDescendants(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ids, err := a.entities.Descendants(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"descendants": ids,
	})
}
