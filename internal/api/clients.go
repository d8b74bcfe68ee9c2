package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tokengate/backend/internal/store"
)

// handleCreateClient provisions a basic client on an api in the caller's
// administered workspace.
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	_, root, aerr := s.auth.Root(r)
	if aerr != nil {
		s.metrics.recordVerification("root", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("root", "ok")

	var body struct {
		Name                    *string `json:"name"`
		ApiID                   *string `json:"api_id"`
		RateLimitBucketSize     *int    `json:"rate_limit_bucket_size"`
		RateLimitRefillAmount   *int    `json:"rate_limit_refill_amount"`
		RateLimitRefillInterval *int    `json:"rate_limit_refill_interval"`
	}
	if aerr := decodeBody(r, &body); aerr != nil {
		writeError(w, aerr)
		return
	}
	if body.Name == nil || *body.Name == "" || body.ApiID == nil || *body.ApiID == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	// The rate limit triplet is all or none.
	configured := 0
	for _, v := range []*int{body.RateLimitBucketSize, body.RateLimitRefillAmount, body.RateLimitRefillInterval} {
		if v != nil {
			configured++
		}
	}
	if configured != 0 && configured != 3 {
		writeError(w, errBadRequest(detailInvalidRequest))
		return
	}

	api, err := s.store.GetApi(r.Context(), *body.ApiID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, errBadRequest(detailInvalidRequest))
		return
	}
	if err != nil {
		s.logger.Error("api lookup failed", "api_id", *body.ApiID, "error", err)
		writeError(w, errInternal())
		return
	}
	if api.WorkspaceID != *root.ForWorkspaceID {
		// An api in someone else's workspace is indistinguishable from a
		// missing one.
		writeError(w, errBadRequest(detailInvalidRequest))
		return
	}

	params := store.BasicClientCreateParams{
		Name:        *body.Name,
		WorkspaceID: *root.ForWorkspaceID,
		ApiID:       api.ID,
	}
	if configured == 3 {
		params.RateLimit = &store.RateLimitParams{
			BucketSize:     *body.RateLimitBucketSize,
			RefillAmount:   *body.RateLimitRefillAmount,
			RefillInterval: *body.RateLimitRefillInterval,
		}
	}

	result, err := s.store.CreateBasicClient(r.Context(), params)
	if err != nil {
		s.logger.Error("create client failed", "api_id", api.ID, "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("created client", "client_id", result.ID, "api_id", api.ID)
	writeJSON(w, http.StatusOK, result)
}

// handleGetClient returns a client in the caller's administered workspace.
// Cross-workspace ids read as missing.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	_, root, aerr := s.auth.Root(r)
	if aerr != nil {
		s.metrics.recordVerification("root", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("root", "ok")

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	client, err := s.store.GetClient(r.Context(), clientID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, errNotFound())
		return
	}
	if err != nil {
		s.logger.Error("client lookup failed", "client_id", clientID, "error", err)
		writeError(w, errInternal())
		return
	}
	if client.WorkspaceID != *root.ForWorkspaceID {
		writeError(w, errNotFound())
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// handleRotateSecret rotates a client's secret and fans the event out so
// verifier caches drop the stale version.
func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	_, root, aerr := s.auth.Root(r)
	if aerr != nil {
		s.metrics.recordVerification("root", aerr.detail)
		writeError(w, aerr)
		return
	}
	s.metrics.recordVerification("root", "ok")

	var body struct {
		ClientID  *string  `json:"client_id"`
		ExpiresAt *float64 `json:"expires_at"` // unix seconds
	}
	if aerr := decodeBody(r, &body); aerr != nil {
		writeError(w, aerr)
		return
	}
	if body.ClientID == nil || *body.ClientID == "" {
		writeError(w, errUnprocessable(detailInvalidRequest))
		return
	}

	target, err := s.store.GetClient(r.Context(), *body.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, errNotFound())
		return
	}
	if err != nil {
		s.logger.Error("client lookup failed", "client_id", *body.ClientID, "error", err)
		writeError(w, errInternal())
		return
	}
	if target.WorkspaceID != *root.ForWorkspaceID {
		writeError(w, errNotFound())
		return
	}

	params := store.RotateClientSecretParams{ClientID: target.ID}
	if body.ExpiresAt != nil {
		t := time.Unix(int64(*body.ExpiresAt), 0)
		params.ExpiresAt = &t
	}

	result, err := s.store.RotateClientSecret(r.Context(), params)
	if errors.Is(err, store.ErrAlreadyRotated) {
		writeError(w, errBadRequest(detailAlreadyRotated))
		return
	}
	if err != nil {
		s.logger.Error("rotate secret failed", "client_id", target.ID, "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("rotated client secret", "client_id", target.ID)

	// The event is advisory; the caller's rotation already committed, so a
	// publish failure only delays cache eviction until version checks catch
	// the stale entry.
	rotated, err := s.store.GetClient(r.Context(), target.ID)
	if err != nil {
		s.logger.Error("post-rotation client reload failed", "client_id", target.ID, "error", err)
		rotated = target
	}
	go func(client store.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.SecretRotated(ctx, &client); err != nil {
			s.logger.Error("rotation event publish failed", "client_id", client.ID, "error", err)
		}
	}(*rotated)

	writeJSON(w, http.StatusOK, result)
}
