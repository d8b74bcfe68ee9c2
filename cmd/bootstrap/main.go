// Command bootstrap seeds a fresh database with the internal plane: the
// internal workspace, its api, and the internal root client. It prints the
// environment lines the server needs, including the client secret, which is
// shown exactly once.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // Postgres driver

	"github.com/tokengate/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}

	st := store.NewPostgres(db)

	workspace, err := st.CreateWorkspace(ctx, store.WorkspaceCreateParams{Name: "internal"})
	if err != nil {
		return err
	}
	api, err := st.CreateApi(ctx, store.ApiCreateParams{Name: "internal", WorkspaceID: workspace.ID})
	if err != nil {
		return err
	}
	client, err := st.CreateRootClient(ctx, store.RootClientCreateParams{
		Name:           "internal",
		WorkspaceID:    workspace.ID,
		ForWorkspaceID: workspace.ID,
		ApiID:          api.ID,
	})
	if err != nil {
		return err
	}

	fmt.Println("# Add these to the server environment. The secret is not recoverable.")
	fmt.Printf("INTERNAL_WORKSPACE_ID=%s\n", workspace.ID)
	fmt.Printf("INTERNAL_API_ID=%s\n", api.ID)
	fmt.Printf("INTERNAL_CLIENT_ID=%s\n", client.ID)
	fmt.Printf("INTERNAL_CLIENT_SECRET=%s\n", client.Secret)
	return nil
}
