package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tokengate/backend/internal/secrets"
	"github.com/tokengate/backend/internal/uid"
)

// Postgres implements Store over database/sql with the lib/pq driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const clientColumns = `id, name, version, workspace_id, for_workspace_id, api_id,
	rate_limit_bucket_size, rate_limit_refill_amount, rate_limit_refill_interval, created_at`

func (p *Postgres) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE id = $1`, id,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &ws, nil
}

func (p *Postgres) GetApi(ctx context.Context, id string) (*Api, error) {
	var api Api
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, workspace_id, created_at, updated_at FROM apis WHERE id = $1`, id,
	).Scan(&api.ID, &api.Name, &api.WorkspaceID, &api.CreatedAt, &api.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api: %w", err)
	}
	return &api, nil
}

func (p *Postgres) GetClient(ctx context.Context, id string) (*Client, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func scanClient(row *sql.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Version, &c.WorkspaceID, &c.ForWorkspaceID, &c.ApiID,
		&c.RateLimitBucketSize, &c.RateLimitRefillAmount, &c.RateLimitRefillInterval,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (p *Postgres) CreateWorkspace(ctx context.Context, params WorkspaceCreateParams) (*Workspace, error) {
	ws := &Workspace{ID: uid.New("ws"), Name: params.Name}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO workspaces (id, name) VALUES ($1, $2) RETURNING created_at, updated_at`,
		ws.ID, ws.Name,
	).Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

func (p *Postgres) CreateApi(ctx context.Context, params ApiCreateParams) (*ApiCreateResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create api: begin: %w", err)
	}
	defer tx.Rollback()

	api := Api{ID: uid.New("api"), Name: params.Name, WorkspaceID: params.WorkspaceID}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO apis (id, name, workspace_id) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		api.ID, api.Name, api.WorkspaceID,
	).Scan(&api.CreatedAt, &api.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create api: %w", err)
	}

	result := &ApiCreateResult{Api: api, Scopes: []ApiScope{}}
	for _, sp := range params.Scopes {
		scope := ApiScope{
			ID:          uid.New("scope"),
			Name:        sp.Name,
			Description: sp.Description,
			ApiID:       api.ID,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO api_scopes (id, name, description, api_id) VALUES ($1, $2, $3, $4) RETURNING created_at`,
			scope.ID, scope.Name, scope.Description, scope.ApiID,
		).Scan(&scope.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("create api scope: %w", err)
		}
		result.Scopes = append(result.Scopes, scope)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create api: commit: %w", err)
	}
	return result, nil
}

func (p *Postgres) CreateRootClient(ctx context.Context, params RootClientCreateParams) (*ClientCreateResult, error) {
	forWorkspace := params.ForWorkspaceID
	client := Client{
		ID:             uid.New("cli"),
		Name:           params.Name,
		Version:        1,
		WorkspaceID:    params.WorkspaceID,
		ForWorkspaceID: &forWorkspace,
		ApiID:          params.ApiID,
	}
	return p.insertClientWithSecret(ctx, client)
}

func (p *Postgres) CreateBasicClient(ctx context.Context, params BasicClientCreateParams) (*ClientCreateResult, error) {
	client := Client{
		ID:          uid.New("cli"),
		Name:        params.Name,
		Version:     1,
		WorkspaceID: params.WorkspaceID,
		ApiID:       params.ApiID,
	}
	if params.RateLimit != nil {
		size := params.RateLimit.BucketSize
		amount := params.RateLimit.RefillAmount
		interval := params.RateLimit.RefillInterval
		client.RateLimitBucketSize = &size
		client.RateLimitRefillAmount = &amount
		client.RateLimitRefillInterval = &interval
	}
	return p.insertClientWithSecret(ctx, client)
}

func (p *Postgres) insertClientWithSecret(ctx context.Context, client Client) (*ClientCreateResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create client: begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO clients (id, name, version, workspace_id, for_workspace_id, api_id,
			rate_limit_bucket_size, rate_limit_refill_amount, rate_limit_refill_interval)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`,
		client.ID, client.Name, client.Version, client.WorkspaceID, client.ForWorkspaceID,
		client.ApiID, client.RateLimitBucketSize, client.RateLimitRefillAmount,
		client.RateLimitRefillInterval,
	).Scan(&client.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	plaintext := secrets.Generate()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO client_secrets (id, client_id, secret_hash, status) VALUES ($1, $2, $3, $4)`,
		uid.New("sec"), client.ID, secrets.Hash(plaintext), SecretStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("create client secret: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create client: commit: %w", err)
	}
	return &ClientCreateResult{Client: client, Secret: plaintext}, nil
}

func (p *Postgres) ListClientSecrets(ctx context.Context, clientID string) ([]ClientSecret, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, client_id, secret_hash, status, expires_at, created_at
		 FROM client_secrets
		 WHERE client_id = $1 AND status = 'active' AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY created_at`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client secrets: %w", err)
	}
	defer rows.Close()

	var out []ClientSecret
	for rows.Next() {
		var s ClientSecret
		if err := rows.Scan(&s.ID, &s.ClientID, &s.SecretHash, &s.Status, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("list client secrets: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetClientSecretValue(ctx context.Context, secretID string) (string, error) {
	var hash string
	err := p.db.QueryRowContext(ctx,
		`SELECT secret_hash FROM client_secrets WHERE id = $1`, secretID,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get client secret value: %w", err)
	}
	return hash, nil
}

// RotateClientSecret runs the rotation as a single transaction: new active
// secret in, outgoing secret stamped, version bumped. Any failure rolls the
// whole sequence back.
func (p *Postgres) RotateClientSecret(ctx context.Context, params RotateClientSecretParams) (*ClientSecretCreateResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("rotate secret: begin: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM clients WHERE id = $1 FOR UPDATE`, params.ClientID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rotate secret: lock client: %w", err)
	}

	var live int
	var currentID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT count(*), max(id) FILTER (WHERE expires_at IS NULL)
		 FROM client_secrets
		 WHERE client_id = $1 AND status = 'active' AND (expires_at IS NULL OR expires_at > now())`,
		params.ClientID,
	).Scan(&live, &currentID)
	if err != nil {
		return nil, fmt.Errorf("rotate secret: inspect secrets: %w", err)
	}
	if live != 1 || !currentID.Valid {
		return nil, ErrAlreadyRotated
	}

	plaintext := secrets.Generate()
	next := ClientSecretCreateResult{
		ID:       uid.New("sec"),
		ClientID: params.ClientID,
		Secret:   plaintext,
		Status:   SecretStatusActive,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO client_secrets (id, client_id, secret_hash, status) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		next.ID, next.ClientID, secrets.Hash(plaintext), next.Status,
	).Scan(&next.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("rotate secret: insert: %w", err)
	}

	// Nil ExpiresAt expires the outgoing secret immediately, which also keeps
	// at most one nil-expiry row per client.
	expiresAt := time.Now().UTC()
	if params.ExpiresAt != nil {
		expiresAt = params.ExpiresAt.UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE client_secrets SET expires_at = $1 WHERE id = $2`,
		expiresAt, currentID.String,
	); err != nil {
		return nil, fmt.Errorf("rotate secret: expire outgoing: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE clients SET version = version + 1 WHERE id = $1`, params.ClientID,
	); err != nil {
		return nil, fmt.Errorf("rotate secret: bump version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("rotate secret: commit: %w", err)
	}
	return &next, nil
}
