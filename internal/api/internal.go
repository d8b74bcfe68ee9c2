package api

import (
	"errors"
	"net/http"

	"github.com/tokengate/backend/internal/store"
)

// handleCreateWorkspace provisions a workspace. Internal plane only.
func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	if _, aerr := s.auth.Internal(r); aerr != nil {
		s.metrics.recordVerification("internal", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("internal", "ok")

	var body struct {
		Name *string `json:"name"`
	}
	if aerr := decodeBody(r, &body); aerr != nil {
		writeError(w, aerr)
		return
	}
	if body.Name == nil || *body.Name == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	workspace, err := s.store.CreateWorkspace(r.Context(), store.WorkspaceCreateParams{Name: *body.Name})
	if err != nil {
		s.logger.Error("create workspace failed", "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("created workspace", "workspace_id", workspace.ID)
	writeJSON(w, http.StatusOK, workspace)
}

// handleCreateRootClient mints a root client that administers the given
// workspace. The client row itself lives in the internal workspace and api.
func (s *Server) handleCreateRootClient(w http.ResponseWriter, r *http.Request) {
	if _, aerr := s.auth.Internal(r); aerr != nil {
		s.metrics.recordVerification("internal", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("internal", "ok")

	var body struct {
		Name           *string `json:"name"`
		ForWorkspaceID *string `json:"for_workspace_id"`
	}
	if aerr := decodeBody(r, &body); aerr != nil {
		writeError(w, aerr)
		return
	}
	if body.Name == nil || *body.Name == "" || body.ForWorkspaceID == nil || *body.ForWorkspaceID == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	if _, err := s.store.GetWorkspace(r.Context(), *body.ForWorkspaceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, errNotFound())
			return
		}
		s.logger.Error("workspace lookup failed", "workspace_id", *body.ForWorkspaceID, "error", err)
		writeError(w, errInternal())
		return
	}

	result, err := s.store.CreateRootClient(r.Context(), store.RootClientCreateParams{
		Name:           *body.Name,
		WorkspaceID:    s.internalWorkspaceID,
		ForWorkspaceID: *body.ForWorkspaceID,
		ApiID:          s.internalAPIID,
	})
	if err != nil {
		s.logger.Error("create root client failed", "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("created root client",
		"client_id", result.ID,
		"for_workspace_id", *body.ForWorkspaceID,
	)
	writeJSON(w, http.StatusOK, result)
}
