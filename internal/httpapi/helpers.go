package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"treasura.org/internal/access"
	"treasura.org/internal/audit"
	"treasura.org/internal/auth"
	"treasura.org/internal/directory"
	"treasura.org/internal/exposure"
	"treasura.org/internal/hierarchy"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleServiceError maps service sentinels onto HTTP status codes. Out-of-scope
// exposure uploads carry the offending reference numbers in the body.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var outOfScope *exposure.OutOfScopeError
	switch {
	case errors.As(err, &outOfScope):
		payload := map[string]any{
			"error":      outOfScope.Error(),
			"references": outOfScope.References,
		}
		if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case isInvalidInput(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case isNotFound(err):
		writeError(w, r, http.StatusNotFound, err.Error())
	case isConflict(err):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, hierarchy.ErrInvalidInput) ||
		errors.Is(err, access.ErrInvalidInput) ||
		errors.Is(err, directory.ErrInvalidInput) ||
		errors.Is(err, exposure.ErrInvalidInput) ||
		errors.Is(err, auth.ErrInvalidInput)
}

func isNotFound(err error) bool {
	return errors.Is(err, hierarchy.ErrNotFound) ||
		errors.Is(err, access.ErrNotFound) ||
		errors.Is(err, directory.ErrNotFound) ||
		errors.Is(err, exposure.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, hierarchy.ErrConflict) ||
		errors.Is(err, directory.ErrConflict)
}

// caller returns the authenticated identity or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	c, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no authenticated caller")
		return auth.Caller{}, false
	}
	return c, true
}

// callerScope resolves the caller's business-unit closure or writes the error.
func (a *API) callerScope(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	c, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	scope, err := a.scope.Scope(r.Context(), c.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return scope, true
}
