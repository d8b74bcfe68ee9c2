package store

import (
	"context"
	"sync"
	"time"

	"github.com/tokengate/backend/internal/secrets"
	"github.com/tokengate/backend/internal/uid"
)

// Memory is an in-memory Store used by tests and the bootstrap dry-run. It
// honors the same invariants as the Postgres gateway.
type Memory struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	apis       map[string]*Api
	scopes     map[string]*ApiScope
	clients    map[string]*Client
	secretRows map[string]*ClientSecret
}

var timeNow = time.Now

func NewMemory() *Memory {
	return &Memory{
		workspaces: make(map[string]*Workspace),
		apis:       make(map[string]*Api),
		scopes:     make(map[string]*ApiScope),
		clients:    make(map[string]*Client),
		secretRows: make(map[string]*ClientSecret),
	}
}

func (m *Memory) GetWorkspace(_ context.Context, id string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ws, ok := m.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (m *Memory) GetApi(_ context.Context, id string) (*Api, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	api, ok := m.apis[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *api
	return &cp, nil
}

func (m *Memory) GetClient(_ context.Context, id string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) CreateWorkspace(_ context.Context, params WorkspaceCreateParams) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := timeNow().UTC()
	ws := &Workspace{
		ID:        uid.New("ws"),
		Name:      params.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.workspaces[ws.ID] = ws
	cp := *ws
	return &cp, nil
}

func (m *Memory) CreateApi(_ context.Context, params ApiCreateParams) (*ApiCreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workspaces[params.WorkspaceID]; !ok {
		return nil, ErrNotFound
	}

	now := timeNow().UTC()
	api := &Api{
		ID:          uid.New("api"),
		Name:        params.Name,
		WorkspaceID: params.WorkspaceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.apis[api.ID] = api

	result := &ApiCreateResult{Api: *api, Scopes: []ApiScope{}}
	for _, sp := range params.Scopes {
		scope := &ApiScope{
			ID:          uid.New("scope"),
			Name:        sp.Name,
			Description: sp.Description,
			ApiID:       api.ID,
			CreatedAt:   now,
		}
		m.scopes[scope.ID] = scope
		result.Scopes = append(result.Scopes, *scope)
	}
	return result, nil
}

func (m *Memory) CreateRootClient(_ context.Context, params RootClientCreateParams) (*ClientCreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workspaces[params.WorkspaceID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.workspaces[params.ForWorkspaceID]; !ok {
		return nil, ErrNotFound
	}

	forWorkspace := params.ForWorkspaceID
	client := &Client{
		ID:             uid.New("cli"),
		Name:           params.Name,
		Version:        1,
		WorkspaceID:    params.WorkspaceID,
		ForWorkspaceID: &forWorkspace,
		ApiID:          params.ApiID,
		CreatedAt:      timeNow().UTC(),
	}
	return m.insertClientWithSecret(client)
}

func (m *Memory) CreateBasicClient(_ context.Context, params BasicClientCreateParams) (*ClientCreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workspaces[params.WorkspaceID]; !ok {
		return nil, ErrNotFound
	}

	client := &Client{
		ID:          uid.New("cli"),
		Name:        params.Name,
		Version:     1,
		WorkspaceID: params.WorkspaceID,
		ApiID:       params.ApiID,
		CreatedAt:   timeNow().UTC(),
	}
	if params.RateLimit != nil {
		size := params.RateLimit.BucketSize
		amount := params.RateLimit.RefillAmount
		interval := params.RateLimit.RefillInterval
		client.RateLimitBucketSize = &size
		client.RateLimitRefillAmount = &amount
		client.RateLimitRefillInterval = &interval
	}
	return m.insertClientWithSecret(client)
}

// insertClientWithSecret mirrors the gateway's transactional contract: the
// client and its initial active secret appear together. Callers hold m.mu.
func (m *Memory) insertClientWithSecret(client *Client) (*ClientCreateResult, error) {
	plaintext := secrets.Generate()
	row := &ClientSecret{
		ID:         uid.New("sec"),
		ClientID:   client.ID,
		SecretHash: secrets.Hash(plaintext),
		Status:     SecretStatusActive,
		CreatedAt:  timeNow().UTC(),
	}

	m.clients[client.ID] = client
	m.secretRows[row.ID] = row

	cp := *client
	return &ClientCreateResult{Client: cp, Secret: plaintext}, nil
}

func (m *Memory) ListClientSecrets(_ context.Context, clientID string) ([]ClientSecret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := timeNow()
	var out []ClientSecret
	for _, row := range m.secretRows {
		if row.ClientID != clientID || row.Status != SecretStatusActive || row.Expired(now) {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (m *Memory) GetClientSecretValue(_ context.Context, secretID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.secretRows[secretID]
	if !ok {
		return "", ErrNotFound
	}
	return row.SecretHash, nil
}

func (m *Memory) RotateClientSecret(_ context.Context, params RotateClientSecretParams) (*ClientSecretCreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[params.ClientID]
	if !ok {
		return nil, ErrNotFound
	}

	now := timeNow().UTC()
	var current *ClientSecret
	live := 0
	for _, row := range m.secretRows {
		if row.ClientID != params.ClientID || row.Status != SecretStatusActive || row.Expired(now) {
			continue
		}
		live++
		if row.ExpiresAt == nil {
			current = row
		}
	}
	if live != 1 || current == nil {
		return nil, ErrAlreadyRotated
	}

	plaintext := secrets.Generate()
	next := &ClientSecret{
		ID:         uid.New("sec"),
		ClientID:   client.ID,
		SecretHash: secrets.Hash(plaintext),
		Status:     SecretStatusActive,
		CreatedAt:  now,
	}
	m.secretRows[next.ID] = next

	// A nil ExpiresAt means the outgoing secret dies immediately; stamping it
	// with now keeps "at most one nil-expiry row per client" true.
	expiresAt := now
	if params.ExpiresAt != nil {
		expiresAt = params.ExpiresAt.UTC()
	}
	current.ExpiresAt = &expiresAt

	client.Version++

	return &ClientSecretCreateResult{
		ID:        next.ID,
		ClientID:  client.ID,
		Secret:    plaintext,
		Status:    next.Status,
		ExpiresAt: next.ExpiresAt,
		CreatedAt: next.CreatedAt,
	}, nil
}
