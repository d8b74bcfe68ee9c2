// Package store is the typed gateway to the relational datastore. Two
// implementations exist: Postgres for production and an in-memory fake that
// tests swap in via the same interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyRotated is returned by RotateClientSecret when the client is
// already inside a rotation window (more than one unexpired active secret).
var ErrAlreadyRotated = errors.New("store: client secret already rotated")

// Store is the narrow capability set the service consumes. Creation
// operations are atomic: a client is never visible without its initial
// active secret, an api never without its scopes.
type Store interface {
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	GetApi(ctx context.Context, id string) (*Api, error)
	GetClient(ctx context.Context, id string) (*Client, error)

	CreateWorkspace(ctx context.Context, params WorkspaceCreateParams) (*Workspace, error)
	CreateApi(ctx context.Context, params ApiCreateParams) (*ApiCreateResult, error)

	// CreateRootClient and CreateBasicClient return the plaintext secret
	// exactly once; only the hash is stored.
	CreateRootClient(ctx context.Context, params RootClientCreateParams) (*ClientCreateResult, error)
	CreateBasicClient(ctx context.Context, params BasicClientCreateParams) (*ClientCreateResult, error)

	// ListClientSecrets returns the client's unexpired secrets: the current
	// one plus, inside a rotation window, the outgoing one.
	ListClientSecrets(ctx context.Context, clientID string) ([]ClientSecret, error)
	GetClientSecretValue(ctx context.Context, secretID string) (string, error)

	// RotateClientSecret atomically inserts a new active secret, stamps the
	// outgoing secret with params.ExpiresAt, and bumps the client version.
	RotateClientSecret(ctx context.Context, params RotateClientSecretParams) (*ClientSecretCreateResult, error)
}

// WorkspaceCreateParams names a new workspace.
type WorkspaceCreateParams struct {
	Name string
}

// ApiScopeParams declares one scope on a new api.
type ApiScopeParams struct {
	Name        string
	Description string
}

// ApiCreateParams creates an api with optional scopes in one transaction.
type ApiCreateParams struct {
	Name        string
	WorkspaceID string
	Scopes      []ApiScopeParams
}

// RootClientCreateParams creates a client privileged to administer
// ForWorkspaceID. Root clients carry no rate limit.
type RootClientCreateParams struct {
	Name           string
	WorkspaceID    string
	ForWorkspaceID string
	ApiID          string
}

// RateLimitParams is the all-or-none rate limit triplet.
type RateLimitParams struct {
	BucketSize     int
	RefillAmount   int
	RefillInterval int // milliseconds
}

// BasicClientCreateParams creates a workspace-scoped machine client.
type BasicClientCreateParams struct {
	Name        string
	WorkspaceID string
	ApiID       string
	RateLimit   *RateLimitParams
}

// RotateClientSecretParams controls the rotation window. A nil ExpiresAt
// expires the outgoing secret immediately at the next verification.
type RotateClientSecretParams struct {
	ClientID  string
	ExpiresAt *time.Time
}
