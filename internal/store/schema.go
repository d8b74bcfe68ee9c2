package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the DDL for the five tables. Ownership edges cascade so that
// deleting a workspace removes its apis, scopes, clients, and secrets.
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id         text PRIMARY KEY,
	name       text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS apis (
	id           text PRIMARY KEY,
	name         text NOT NULL,
	workspace_id text NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_scopes (
	id          text PRIMARY KEY,
	name        text NOT NULL,
	description text NOT NULL DEFAULT '',
	api_id      text NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clients (
	id                         text PRIMARY KEY,
	name                       text NOT NULL,
	version                    integer NOT NULL DEFAULT 1 CHECK (version >= 1),
	workspace_id               text NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	for_workspace_id           text REFERENCES workspaces(id) ON DELETE CASCADE,
	api_id                     text NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
	rate_limit_bucket_size     integer,
	rate_limit_refill_amount   integer,
	rate_limit_refill_interval integer,
	created_at                 timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS client_secrets (
	id          text PRIMARY KEY,
	client_id   text NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	secret_hash text NOT NULL,
	status      text NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
	expires_at  timestamptz,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_client_secrets_client_id ON client_secrets(client_id);
CREATE INDEX IF NOT EXISTS idx_clients_workspace_id ON clients(workspace_id);
CREATE INDEX IF NOT EXISTS idx_apis_workspace_id ON apis(workspace_id);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
