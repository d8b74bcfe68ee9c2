package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tokengate/backend/internal/secrets"
	"github.com/tokengate/backend/internal/store"
)

const grantTypeClientCredentials = "client_credentials"

// TokenResponse is the /oauth/token success body.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int     `json:"expires_in"`
	Scope       *string `json:"scope"`
}

// credentials are the three values the endpoint needs, each possibly coming
// from a different wire location.
type credentials struct {
	clientID     *string
	clientSecret *string
	grantType    *string
}

// merge fills empty fields from the fallback source. Body values win over
// header values.
func (c credentials) merge(fallback credentials) credentials {
	if c.clientID == nil {
		c.clientID = fallback.clientID
	}
	if c.clientSecret == nil {
		c.clientSecret = fallback.clientSecret
	}
	if c.grantType == nil {
		c.grantType = fallback.grantType
	}
	return c
}

func (c credentials) complete() bool {
	return c.clientID != nil && c.clientSecret != nil && c.grantType != nil
}

// parseBodyCredentials reads exactly one body modality, chosen by
// Content-Type. An unreadable or absent body yields empty credentials; the
// header may still supply what is missing.
func parseBodyCredentials(r *http.Request) credentials {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return credentials{}
		}
		return credentials{
			clientID:     formValue(r, "client_id"),
			clientSecret: formValue(r, "client_secret"),
			grantType:    formValue(r, "grant_type"),
		}

	case strings.Contains(contentType, "application/json"):
		var body struct {
			ClientID     *string `json:"client_id"`
			ClientSecret *string `json:"client_secret"`
			GrantType    *string `json:"grant_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return credentials{}
		}
		return credentials{
			clientID:     body.ClientID,
			clientSecret: body.ClientSecret,
			grantType:    body.GrantType,
		}

	default:
		return credentials{}
	}
}

func formValue(r *http.Request, key string) *string {
	if !r.PostForm.Has(key) {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

// parseBasicCredentials decodes an "Authorization: Basic ..." header into
// client id and secret.
func parseBasicCredentials(r *http.Request) credentials {
	auth := r.Header.Get("Authorization")
	scheme, encoded, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "basic") {
		return credentials{}
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return credentials{}
	}

	id, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return credentials{}
	}
	return credentials{clientID: &id, clientSecret: &secret}
}

// handleOAuthToken issues a bearer token for valid client credentials.
// Credential failures are always 400: 401 is reserved for protected
// resources, and this endpoint is not one.
func (s *Server) handleOAuthToken(w http.ResponseWriter, r *http.Request) {
	creds := parseBodyCredentials(r).merge(parseBasicCredentials(r))

	if !creds.complete() || *creds.grantType != grantTypeClientCredentials {
		s.metrics.recordIssued("invalid_request")
		writeError(w, errBadRequest(detailInvalidRequest))
		return
	}

	client, err := s.store.GetClient(r.Context(), *creds.clientID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("token requested for unknown client", "client_id", *creds.clientID)
		s.metrics.recordIssued("invalid_client")
		writeError(w, errBadRequest(detailInvalidClient))
		return
	}
	if err != nil {
		s.logger.Error("client lookup failed", "client_id", *creds.clientID, "error", err)
		writeError(w, errInternal())
		return
	}

	// Inside a rotation window two secrets verify: the current one and the
	// outgoing one. After the outgoing secret's expiry passes the store no
	// longer returns it here.
	rows, err := s.store.ListClientSecrets(r.Context(), client.ID)
	if err != nil {
		s.logger.Error("secret lookup failed", "client_id", client.ID, "error", err)
		writeError(w, errInternal())
		return
	}

	var matched *store.ClientSecret
	for i := range rows {
		if secrets.Verify(*creds.clientSecret, rows[i].SecretHash) {
			matched = &rows[i]
			break
		}
	}
	if matched == nil {
		s.logger.Info("secret mismatch", "client_id", client.ID)
		s.metrics.recordIssued("invalid_client")
		writeError(w, errBadRequest(detailInvalidClient))
		return
	}

	// A token minted from the outgoing secret advertises when that secret
	// dies so verifiers can cut it off early.
	var secretExpiresAt *time.Time
	if matched.ExpiresAt != nil {
		secretExpiresAt = matched.ExpiresAt
	}

	signed, _, err := s.codec.Issue(client.ID, client.Version, secretExpiresAt)
	if err != nil {
		s.logger.Error("token signing failed", "client_id", client.ID, "error", err)
		writeError(w, errInternal())
		return
	}

	s.logger.Info("issued token", "client_id", client.ID, "version", client.Version)
	s.metrics.recordIssued("issued")

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(s.codec.TTL().Seconds()),
		Scope:       nil,
	})
}
