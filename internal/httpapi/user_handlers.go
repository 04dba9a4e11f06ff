package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"treasura.org/internal/access"
	"treasura.org/internal/audit"
	"treasura.org/internal/directory"
)

// userCreationPage is the permission page attached to user listings so the
// UI can decide whether the caller may add users.
const userCreationPage = "user-creation"

type userBulkRequest struct {
	UserIDs    []int64 `json:"userIds"`
	ApprovedBy string  `json:"approved_by"`
	RejectedBy string  `json:"rejected_by"`
	Comment    string  `json:"comment"`
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req directory.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	w.Header().Set("Location", "/api/users/"+strconv.FormatInt(user.ID, 10))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	c, ok := caller(w, r)
	if !ok {
		return
	}
	scope, err := a.scope.Scope(r.Context(), c.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	users, err := a.users.List(r.Context(), scope, status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// the UI needs the caller's create grant alongside the listing; a role
	// with no grants just gets an empty block
	grant, err := a.permissions.PageTree(r.Context(), c.Role, userCreationPage)
	if err != nil {
		grant = access.PageGrant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":       users,
		"permissions": grant,
	})
}

func (a *API) handleUserAwaiting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	scope, ok := a.callerScope(w, r)
	if !ok {
		return
	}
	users, err := a.users.Awaiting(r.Context(), scope)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
	})
}

func (a *API) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req userBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.users.RequestDelete(r.Context(), req.UserIDs, c.Role, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.delete_request", map[string]any{
		"user_ids": req.UserIDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleUserBulkApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req userBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := a.users.Approve(r.Context(), req.UserIDs, req.ApprovedBy, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.approve", map[string]any{
		"user_ids": req.UserIDs,
		"deleted":  outcome.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  outcome.Deleted,
		"approved": outcome.Approved,
	})
}

func (a *API) handleUserBulkReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req userBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.users.Reject(r.Context(), req.UserIDs, req.RejectedBy, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.reject", map[string]any{
		"user_ids": req.UserIDs,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
	})
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
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
		a.handleUserGet(w, r, id)
		return
	}
	if len(parts) == 2 && parts[0] == "update" {
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleUserUpdate(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req directory.UserUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.update", map[string]any{
		"user_id": id,
		"status":  string(user.Status),
	})
	writeJSON(w, http.StatusOK, user)
}
