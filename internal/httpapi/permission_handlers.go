package httpapi

import (
	"net/http"
	"strings"

	"treasura.org/internal/access"
	"treasura.org/internal/audit"
	"treasura.org/internal/lifecycle"
)

type assignPermissionsRequest struct {
	RoleName string                      `json:"roleName"`
	Pages    map[string]access.PageGrant `json:"pages"`
}

type roleNameRequest struct {
	RoleName string `json:"roleName"`
}

type pageTreeRequest struct {
	RoleName string `json:"roleName"`
	Page     string `json:"page"`
}

type roleStatusRequest struct {
	RoleName string `json:"roleName"`
	Status   string `json:"status"`
}

func (a *API) handlePermissionAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req assignPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	count, err := a.permissions.Assign(r.Context(), req.RoleName, req.Pages)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permissions.assign", map[string]any{
		"role_name": req.RoleName,
		"tuples":    count,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"assigned": count,
	})
}

func (a *API) handlePermissionTree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req roleNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tree, err := a.permissions.RoleTree(r.Context(), req.RoleName)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": tree,
	})
}

func (a *API) handlePermissionPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req pageTreeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.permissions.PageTree(r.Context(), req.RoleName, req.Page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleSidebar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	c, ok := caller(w, r)
	if !ok {
		return
	}
	pages, err := a.permissions.Sidebar(r.Context(), c.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sidebar": pages,
	})
}

func (a *API) handleRoleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		statuses, err := a.permissions.RoleStatuses(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"roles": statuses,
		})
	case http.MethodPost:
		var req roleStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		status := lifecycle.Status(strings.TrimSpace(req.Status))
		affected, err := a.permissions.SetStatusByRole(r.Context(), req.RoleName, status)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "permissions.set_status", map[string]any{
			"role_name": req.RoleName,
			"status":    string(status),
			"affected":  affected,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"updated": affected,
		})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
