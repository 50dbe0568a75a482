package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgresDSN returns TEST_DATABASE_URL when set, otherwise starts a
// throwaway container. The test is skipped when neither is available.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres: skipped in -short mode")
	}
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}

	ctx := context.Background()
	c, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("emis"),
		postgres.WithUsername("emis"),
		postgres.WithPassword("emis"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres: container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresContract(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()

	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate is idempotent")
	for _, table := range []string{"admins", "district_heads", "principals", "teachers", "parents"} {
		_, err := db.Client.ExecContext(ctx, "TRUNCATE "+table)
		require.NoError(t, err)
	}

	pg := NewPostgres(db)
	require.True(t, pg.Healthy(ctx))
	runContract(t, pg)
}
