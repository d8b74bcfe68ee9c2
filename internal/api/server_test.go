package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/backend/internal/cache"
	"github.com/tokengate/backend/internal/events"
	"github.com/tokengate/backend/internal/ratelimit"
	"github.com/tokengate/backend/internal/store"
	"github.com/tokengate/backend/internal/token"
)

// testEnv wires a server against the in-memory store with a seeded internal
// plane, a customer workspace, and a root client for it.
type testEnv struct {
	t      *testing.T
	server *Server
	store  *store.Memory
	codec  *token.Codec
	cache  *cache.ClientCache

	internal  *store.ClientCreateResult
	workspace *store.Workspace
	api       *store.ApiCreateResult
	root      *store.ClientCreateResult
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	internalWorkspace, err := mem.CreateWorkspace(ctx, store.WorkspaceCreateParams{Name: "internal"})
	require.NoError(t, err)
	internalAPI, err := mem.CreateApi(ctx, store.ApiCreateParams{Name: "internal", WorkspaceID: internalWorkspace.ID})
	require.NoError(t, err)
	internalClient, err := mem.CreateRootClient(ctx, store.RootClientCreateParams{
		Name:           "internal",
		WorkspaceID:    internalWorkspace.ID,
		ForWorkspaceID: internalWorkspace.ID,
		ApiID:          internalAPI.ID,
	})
	require.NoError(t, err)

	workspace, err := mem.CreateWorkspace(ctx, store.WorkspaceCreateParams{Name: "acme"})
	require.NoError(t, err)
	api, err := mem.CreateApi(ctx, store.ApiCreateParams{Name: "acme-api", WorkspaceID: workspace.ID})
	require.NoError(t, err)
	root, err := mem.CreateRootClient(ctx, store.RootClientCreateParams{
		Name:           "acme-root",
		WorkspaceID:    internalWorkspace.ID,
		ForWorkspaceID: workspace.ID,
		ApiID:          internalAPI.ID,
	})
	require.NoError(t, err)

	codec := token.NewCodec("test-signing-secret", time.Hour)
	clientCache := cache.NewClientCache()

	server := NewServer(Options{
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:               mem,
		Codec:               codec,
		Cache:               clientCache,
		Buckets:             ratelimit.NewRegistry(),
		Publisher:           events.NopPublisher{},
		Registry:            prometheus.NewRegistry(),
		InternalClientID:    internalClient.ID,
		InternalAPIID:       internalAPI.ID,
		InternalWorkspaceID: internalWorkspace.ID,
	})

	return &testEnv{
		t:         t,
		server:    server,
		store:     mem,
		codec:     codec,
		cache:     clientCache,
		internal:  internalClient,
		workspace: workspace,
		api:       api,
		root:      root,
	}
}

// tokenFor mints a valid token for the client's current version.
func (e *testEnv) tokenFor(clientID string) string {
	e.t.Helper()
	client, err := e.store.GetClient(context.Background(), clientID)
	require.NoError(e.t, err)
	signed, _, err := e.codec.Issue(client.ID, client.Version, nil)
	require.NoError(e.t, err)
	return signed
}

// postJSON sends a JSON body with an optional bearer token.
func (e *testEnv) postJSON(path, bearer string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(e.t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path, bearer string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON[map[string]string](t, rec)
	return body["detail"]
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON[map[string]string](t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.postJSON("/oauth/token", "", map[string]string{})

	rec := env.get("/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "auth_tokens_issued_total"))
}

func TestUnknownBodyIsUnprocessable(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/internal.createWorkspace", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.tokenFor(env.internal.ID))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
