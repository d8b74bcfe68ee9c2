package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tokengate/backend/internal/cache"
	"github.com/tokengate/backend/internal/ratelimit"
	"github.com/tokengate/backend/internal/store"
	"github.com/tokengate/backend/internal/token"
)

// Soft-failure reasons returned by the basic authorizer, alongside the token
// error categories.
const (
	reasonNotFound          = "NOT_FOUND"
	reasonVersionMismatch   = "VERSION_MISMATCH"
	reasonSecretExpired     = "SECRET_EXPIRED"
	reasonRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// VerifyResult is the basic authorizer's answer. It is always delivered with
// HTTP 200 so resource servers make their own rejection choices.
type VerifyResult struct {
	Valid  bool    `json:"valid"`
	Reason *string `json:"reason"`
}

func invalid(reason string) VerifyResult {
	return VerifyResult{Valid: false, Reason: &reason}
}

// Authorizer implements the three token gates. Internal and root fetch the
// client fresh from the store; only the basic path consults the cache.
type Authorizer struct {
	codec            *token.Codec
	store            store.Store
	cache            *cache.ClientCache
	buckets          *ratelimit.Registry
	internalClientID string
}

func NewAuthorizer(codec *token.Codec, st store.Store, clientCache *cache.ClientCache, buckets *ratelimit.Registry, internalClientID string) *Authorizer {
	return &Authorizer{
		codec:            codec,
		store:            st,
		cache:            clientCache,
		buckets:          buckets,
		internalClientID: internalClientID,
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, rest, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || rest == "" {
		return "", false
	}
	return rest, true
}

// decode runs the shared preamble: require a bearer token and map decode
// failures to their category as a 401 detail.
func (a *Authorizer) decode(r *http.Request) (*token.Payload, *apiError) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, errUnauthorized(detailNotAuthenticated)
	}

	payload, err := a.codec.Verify(raw)
	if err != nil {
		var verr *token.VerifyError
		if errors.As(err, &verr) {
			return nil, errUnauthorized(string(verr.Category))
		}
		return nil, errUnauthorized(string(token.CategoryBadJWT))
	}
	return payload, nil
}

// checkFreshness enforces the revocation counter and the rotation window on
// an authenticated payload.
func checkFreshness(payload *token.Payload, client *store.Client) *apiError {
	if payload.Version != client.Version {
		return errUnauthorized(reasonVersionMismatch)
	}
	if payload.SecretExpiresAt != nil && !payload.SecretExpiresAt.After(time.Now()) {
		return errUnauthorized(reasonSecretExpired)
	}
	return nil
}

// Internal admits only the environment-configured internal client.
func (a *Authorizer) Internal(r *http.Request) (*token.Payload, *apiError) {
	payload, aerr := a.decode(r)
	if aerr != nil {
		return nil, aerr
	}

	if payload.Sub != a.internalClientID {
		return nil, errForbidden()
	}

	// Infrequent path: always hit the store, never the cache.
	client, err := a.store.GetClient(r.Context(), payload.Sub)
	if err != nil {
		// An authenticated token whose subject has no row is an invariant
		// violation, not a caller mistake.
		return nil, errInternal()
	}

	if aerr := checkFreshness(payload, client); aerr != nil {
		return nil, aerr
	}
	return payload, nil
}

// Root admits clients that administer a workspace, returning the client so
// handlers can scope their work to client.ForWorkspaceID.
func (a *Authorizer) Root(r *http.Request) (*token.Payload, *store.Client, *apiError) {
	payload, aerr := a.decode(r)
	if aerr != nil {
		return nil, nil, aerr
	}

	client, err := a.store.GetClient(r.Context(), payload.Sub)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, errForbidden()
	}
	if err != nil {
		return nil, nil, errInternal()
	}
	if !client.IsRoot() {
		return nil, nil, errForbidden()
	}

	if aerr := checkFreshness(payload, client); aerr != nil {
		return nil, nil, aerr
	}
	return payload, client, nil
}

// Basic never fails on token problems: every outcome except a missing
// Authorization header or a store fault becomes a VerifyResult.
func (a *Authorizer) Basic(r *http.Request) (VerifyResult, *apiError) {
	raw, ok := bearerToken(r)
	if !ok {
		return VerifyResult{}, errUnauthorized(detailNotAuthenticated)
	}

	payload, err := a.codec.Verify(raw)
	if err != nil {
		var verr *token.VerifyError
		if errors.As(err, &verr) {
			return invalid(string(verr.Category)), nil
		}
		return invalid(string(token.CategoryBadJWT)), nil
	}

	client, ok := a.cache.Get(payload.Sub)
	if !ok {
		fresh, err := a.store.GetClient(r.Context(), payload.Sub)
		if errors.Is(err, store.ErrNotFound) {
			return invalid(reasonNotFound), nil
		}
		if err != nil {
			return VerifyResult{}, errInternal()
		}
		a.cache.Set(fresh)
		client = fresh
	}

	if payload.Version != client.Version {
		return invalid(reasonVersionMismatch), nil
	}
	if payload.SecretExpiresAt != nil && !payload.SecretExpiresAt.After(time.Now()) {
		return invalid(reasonSecretExpired), nil
	}

	if !client.HasRateLimit() {
		return VerifyResult{Valid: true}, nil
	}

	bucket := a.buckets.Bucket(client.ID,
		*client.RateLimitBucketSize,
		*client.RateLimitRefillAmount,
		*client.RateLimitRefillInterval,
	)
	if !bucket.Take(1) {
		return invalid(reasonRateLimitExceeded), nil
	}
	return VerifyResult{Valid: true}, nil
}
