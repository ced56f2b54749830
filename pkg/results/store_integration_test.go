//go:build integration

package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestStore_MigrateAndPersist(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Persist(ctx, sampleResponse()))

	var count int
	err = store.pool.QueryRow(ctx,
		`SELECT count(*) FROM analyses WHERE ticker = $1`, "AAPL").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Reconnecting must tolerate already-applied migrations.
	again, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	again.Close()
}
