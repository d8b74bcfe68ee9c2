package store

import "time"

// Secret status values.
const (
	SecretStatusActive   = "active"
	SecretStatusInactive = "inactive"
)

// Workspace is the root isolation boundary. Every api and non-internal
// client belongs to exactly one workspace.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Api declares a set of scopes that its clients may hold.
type Api struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ApiScope struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ApiID       string    `json:"api_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ApiCreateResult is an api together with the scopes created with it.
type ApiCreateResult struct {
	Api
	Scopes []ApiScope `json:"scopes"`
}

// Client is a machine principal. A client with ForWorkspaceID set is a root
// client acting on behalf of that workspace; otherwise it is a basic client.
// Version increases by exactly one on every secret rotation and is embedded
// in every issued token as the revocation counter.
type Client struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Version                 int       `json:"version"`
	WorkspaceID             string    `json:"workspace_id"`
	ForWorkspaceID          *string   `json:"for_workspace_id"`
	ApiID                   string    `json:"api_id"`
	RateLimitBucketSize     *int      `json:"rate_limit_bucket_size"`
	RateLimitRefillAmount   *int      `json:"rate_limit_refill_amount"`
	RateLimitRefillInterval *int      `json:"rate_limit_refill_interval"`
	CreatedAt               time.Time `json:"created_at"`
}

// IsRoot reports whether the client administers another workspace.
func (c *Client) IsRoot() bool {
	return c.ForWorkspaceID != nil
}

// HasRateLimit reports whether the rate-limit triplet is configured.
func (c *Client) HasRateLimit() bool {
	return c.RateLimitBucketSize != nil &&
		c.RateLimitRefillAmount != nil &&
		c.RateLimitRefillInterval != nil
}

// ClientSecret stores the hash of a client secret, never the plaintext.
// At most two unexpired rows exist per client; at most one has a nil
// ExpiresAt (the current secret).
type ClientSecret struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	SecretHash string     `json:"-"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the secret is past its expiry at now.
func (s *ClientSecret) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// ClientCreateResult carries the one-time plaintext secret alongside the
// created client.
type ClientCreateResult struct {
	Client
	Secret string `json:"secret"`
}

// ClientSecretCreateResult is the response to a rotation: the new secret's
// row plus its one-time plaintext value.
type ClientSecretCreateResult struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Secret    string     `json:"secret"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}
