package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ticketledger/pkg"
)

var (
	testDB     *sqlx.DB
	testDBOnce sync.Once
)

// GetDb connects to POSTGRES_URL once per test binary and prepares both the
// ledger tables and the outbox.
func GetDb(t *testing.T) *sqlx.DB {
	testDBOnce.Do(func() {
		conn, err := sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		require.NoError(t, err)

		require.NoError(t, InitializeDatabaseSchema(conn))
		require.NoError(t, pkg.InitializeOutbox(conn.DB, watermill.NopLogger{}))

		testDB = conn
	})
	require.NotNil(t, testDB, "database setup failed in an earlier test")

	return testDB
}

// StartPostgresContainer starts a throwaway Postgres and returns its DSN.
// It panics, since it is called from TestMain before any *testing.T exists.
func StartPostgresContainer() (testcontainers.Container, string) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase("ticketledger"),
		postgres.WithUsername("ticketledger"),
		postgres.WithPassword("ticketledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "application_name=ticketledger-test")
	if err != nil {
		panic(err)
	}

	return container, dsn
}
