package httpapi

import (
	"net/http"
	"strings"
	"time"

	"treasura.org/internal/audit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	UserID int64 `json:"userId"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    result.Session.UserID,
		"email":      result.Session.Email,
		"expires_at": result.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       result.Session,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID := req.UserID
	if userID <= 0 {
		// fall back to the authenticated caller
		if c, ok := caller(w, r); ok {
			userID = c.UserID
		} else {
			return
		}
	}

	remaining, err := a.auth.Logout(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id":   userID,
		"remaining": remaining,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedOut": userID,
		"remaining": remaining,
	})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := caller(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": a.sessions.List(),
	})
}
