package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"treasura.org/internal/audit"
	"treasura.org/internal/directory"
)

type roleBulkRequest struct {
	RoleIDs    []int64 `json:"roleIds"`
	ApprovedBy string  `json:"approved_by"`
	RejectedBy string  `json:"rejected_by"`
	Comment    string  `json:"comment"`
}

func (a *API) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req directory.NewRole
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.roles.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.create", map[string]any{
		"role_id":   role.ID,
		"role_name": role.RoleName,
	})
	w.Header().Set("Location", "/api/roles/"+strconv.FormatInt(role.ID, 10))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleRoleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	roles, err := a.roles.List(r.Context(), status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roles": roles,
	})
}

func (a *API) handleRoleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req roleBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.roles.RequestDelete(r.Context(), req.RoleIDs, c.Role, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.delete_request", map[string]any{
		"role_ids": req.RoleIDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleRoleBulkApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req roleBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := a.roles.Approve(r.Context(), req.RoleIDs, req.ApprovedBy, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.approve", map[string]any{
		"role_ids": req.RoleIDs,
		"deleted":  outcome.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  outcome.Deleted,
		"approved": outcome.Approved,
	})
}

func (a *API) handleRoleBulkReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req roleBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.roles.Reject(r.Context(), req.RoleIDs, req.RejectedBy, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.reject", map[string]any{
		"role_ids": req.RoleIDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleRoleScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/roles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if len(parts) == 1 {
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleRoleGet(w, r, id)
		return
	}
	if len(parts) == 2 && parts[0] == "update" {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleRoleUpdate(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) handleRoleGet(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	role, err := a.roles.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleRoleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req directory.RoleUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.roles.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.update", map[string]any{
		"role_id": id,
		"status":  string(role.Status),
	})
	writeJSON(w, http.StatusOK, role)
}
