package api

import (
	"net/http"

	"github.com/tokengate/backend/internal/store"
)

// handleCreateApi registers an api, with its initial scopes, in the caller's
// administered workspace.
func (s *Server) handleCreateApi(w http.ResponseWriter, r *http.Request) {
	_, root, aerr := s.auth.Root(r)
	if aerr != nil {
		s.metrics.recordVerification("root", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("root", "ok")

	var body struct {
		Name   *string `json:"name"`
		Scopes []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"scopes"`
	}
	if aerr := decodeBody(r, &body); aerr != nil {
		writeError(w, aerr)
		return
	}
	if body.Name == nil || *body.Name == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	params := store.ApiCreateParams{
		Name:        *body.Name,
		WorkspaceID: *root.ForWorkspaceID,
	}
	for _, scope := range body.Scopes {
		params.Scopes = append(params.Scopes, store.ApiScopeParams{
			Name:        scope.Name,
			Description: scope.Description,
		})
	}

	result, err := s.store.CreateApi(r.Context(), params)
	if err != nil {
		s.logger.Error("create api failed", "workspace_id", params.WorkspaceID, "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("created api", "api_id", result.ID, "workspace_id", params.WorkspaceID)
	writeJSON(w, http.StatusOK, result)
}
