package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// containerEnv opts in to the container backed tests.
const containerEnv = "GATEKEEPER_POSTGRES_IT"

// startPostgres runs a throwaway PostgreSQL container and returns its DSN.
// It skips unless containerEnv is set and a container provider is reachable.
func startPostgres(t *testing.T) string {
	t.Helper()
	if os.Getenv(containerEnv) == "" {
		t.Skipf("set %s=1 to run container tests", containerEnv)
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gatekeeper",
			"POSTGRES_PASSWORD": "gatekeeper",
			"POSTGRES_DB":       "gatekeeper",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://gatekeeper:gatekeeper@%s:%s/gatekeeper?sslmode=disable", host, port.Port())
}

func TestConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	dsn := startPostgres(t)

	migrator, err := postgres.NewStore(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, migrator.ApplyMigrations())
	require.NoError(t, migrator.ApplyMigrations())
	require.NoError(t, migrator.Close())

	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) store.Store {
		t.Helper()
		st, err := postgres.NewStore(context.Background(), dsn, postgres.WithClock(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}
