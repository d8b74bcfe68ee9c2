package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/backend/internal/secrets"
)

func seedClient(t *testing.T, m *Memory) *ClientCreateResult {
	t.Helper()
	ctx := context.Background()

	ws, err := m.CreateWorkspace(ctx, WorkspaceCreateParams{Name: "acme"})
	require.NoError(t, err)
	api, err := m.CreateApi(ctx, ApiCreateParams{Name: "acme-api", WorkspaceID: ws.ID})
	require.NoError(t, err)
	client, err := m.CreateBasicClient(ctx, BasicClientCreateParams{
		Name:        "worker",
		WorkspaceID: ws.ID,
		ApiID:       api.ID,
	})
	require.NoError(t, err)
	return client
}

func TestCreateClientStartsAtVersionOne(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)

	assert.Equal(t, 1, created.Version)
	assert.True(t, strings.HasPrefix(created.ID, "cli_"))
	assert.NotEmpty(t, created.Secret)

	// Exactly one active secret, hashed, never the plaintext.
	rows, err := m.ListClientSecrets(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, SecretStatusActive, rows[0].Status)
	assert.Nil(t, rows[0].ExpiresAt)
	assert.NotEqual(t, created.Secret, rows[0].SecretHash)
	assert.True(t, secrets.Verify(created.Secret, rows[0].SecretHash))
}

func TestRotateBumpsVersionAndExpiresOutgoing(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	rotated, err := m.RotateClientSecret(ctx, RotateClientSecretParams{
		ClientID:  created.ID,
		ExpiresAt: &expiresAt,
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.Secret, rotated.Secret)

	client, err := m.GetClient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, client.Version)

	// Window open: two unexpired rows, exactly one with nil expiry.
	rows, err := m.ListClientSecrets(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	nilExpiry := 0
	for _, row := range rows {
		if row.ExpiresAt == nil {
			nilExpiry++
		}
	}
	assert.Equal(t, 1, nilExpiry)
}

func TestRotateWithoutExpiryClosesWindowImmediately(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	_, err := m.RotateClientSecret(ctx, RotateClientSecretParams{ClientID: created.ID})
	require.NoError(t, err)

	// The outgoing secret is gone from the verifying set right away, so a
	// second rotation is allowed.
	rows, err := m.ListClientSecrets(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = m.RotateClientSecret(ctx, RotateClientSecretParams{ClientID: created.ID})
	require.NoError(t, err)

	client, err := m.GetClient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, client.Version)
}

func TestRotateInsideOpenWindowFails(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	_, err := m.RotateClientSecret(ctx, RotateClientSecretParams{ClientID: created.ID, ExpiresAt: &expiresAt})
	require.NoError(t, err)

	_, err = m.RotateClientSecret(ctx, RotateClientSecretParams{ClientID: created.ID, ExpiresAt: &expiresAt})
	require.ErrorIs(t, err, ErrAlreadyRotated)

	// The failed attempt must not bump the version.
	client, err := m.GetClient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, client.Version)
}

func TestRotateUnknownClient(t *testing.T) {
	m := NewMemory()

	_, err := m.RotateClientSecret(context.Background(), RotateClientSecretParams{ClientID: "cli_missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListClientSecretsSkipsExpired(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	_, err := m.RotateClientSecret(ctx, RotateClientSecretParams{ClientID: created.ID, ExpiresAt: &past})
	require.NoError(t, err)

	rows, err := m.ListClientSecrets(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, secrets.Verify(created.Secret, rows[0].SecretHash))
}

func TestGetClientSecretValue(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	rows, err := m.ListClientSecrets(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	hash, err := m.GetClientSecretValue(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rows[0].SecretHash, hash)

	_, err = m.GetClientSecretValue(ctx, "sec_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateApiUnknownWorkspace(t *testing.T) {
	m := NewMemory()

	_, err := m.CreateApi(context.Background(), ApiCreateParams{Name: "x", WorkspaceID: "ws_missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopies(t *testing.T) {
	m := NewMemory()
	created := seedClient(t, m)
	ctx := context.Background()

	first, err := m.GetClient(ctx, created.ID)
	require.NoError(t, err)
	first.Version = 42

	second, err := m.GetClient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Version)
}
