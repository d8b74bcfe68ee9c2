package api

import (
	"encoding/json"
	"net/http"
)

// Stable detail strings surfaced to callers. Authorizer failures use the
// token error categories directly; these cover everything else.
const (
	detailInvalidRequest   = "Invalid request"
	detailInvalidClient    = "Invalid client"
	detailNotAuthenticated = "Not authenticated"
	detailForbidden        = "Forbidden"
	detailNotFound         = "Not found"
	detailInternal         = "Internal server error"
	detailAlreadyRotated   = "Client secret already rotated"
)

// apiError is an HTTP error with the detail string rendered to the caller.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string { return e.detail }

func errBadRequest(detail string) *apiError {
	return &apiError{status: http.StatusBadRequest, detail: detail}
}

func errUnauthorized(detail string) *apiError {
	return &apiError{status: http.StatusUnauthorized, detail: detail}
}

func errForbidden() *apiError {
	return &apiError{status: http.StatusForbidden, detail: detailForbidden}
}

func errNotFound() *apiError {
	return &apiError{status: http.StatusNotFound, detail: detailNotFound}
}

func errUnprocessable(detail string) *apiError {
	return &apiError{status: http.StatusUnprocessableEntity, detail: detail}
}

func errInternal() *apiError {
	return &apiError{status: http.StatusInternalServerError, detail: detailInternal}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *apiError) {
	writeJSON(w, err.status, map[string]string{"detail": err.detail})
}
