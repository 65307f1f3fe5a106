package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/internal/repository/repositorytest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "CATALOG_SKIP_INTEGRATION_TESTS"

// PgCatalogSuite runs the repository conformance tests against a real PostgreSQL.
type PgCatalogSuite struct {
	repositorytest.CatalogSuite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	logger      *slog.Logger
}

func (s *PgCatalogSuite) SetupSuite() {
	s.Ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// 1. Start a PostgreSQL container and wait for it to accept connections.
	s.pgContainer, err = postgres.Run(s.Ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.Ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 2. Connect with retries.
	s.dbPool, err = pgxpool.New(s.Ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")
	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.Ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	// 3. Apply the embedded migrations twice; the second run must be a no-op.
	require.NoError(s.T(), Migrate(connStr), "Failed to apply migrations")
	require.NoError(s.T(), Migrate(connStr), "Repeated migration must succeed")

	s.Catalog = NewPgCatalog(s.dbPool)
	s.Reset = func() {
		_, err := s.dbPool.Exec(s.Ctx, "TRUNCATE TABLE products, stores")
		require.NoError(s.T(), err, "Failed to truncate tables")
	}
	s.logger.Info("Initialization complete for PgCatalogSuite")
}

func (s *PgCatalogSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.Ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// TestInTx_RowLockSerializesWriters checks that a second transaction waits for the lock held by the first.
func (s *PgCatalogSuite) TestInTx_RowLockSerializesWriters() {
	p, err := s.Catalog.Products().Create(s.Ctx, "Milk", 1, repository.Perishable)
	s.Require().NoError(err)
	first, second := uuid.New(), uuid.New()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Catalog.InTx(s.Ctx, func(tx repository.Catalog) error {
			if _, err := tx.Products().FindByID(s.Ctx, p.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			_, err := tx.Products().SetStores(s.Ctx, p.ID, []uuid.UUID{first})
			return err
		})
	}()

	<-locked
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.Catalog.InTx(s.Ctx, func(tx repository.Catalog) error {
			current, err := tx.Products().FindByID(s.Ctx, p.ID)
			if err != nil {
				return err
			}
			_, err = tx.Products().SetStores(s.Ctx, p.ID, append(current.Stores, second))
			return err
		})
	}()

	select {
	case <-secondDone:
		s.Fail("second transaction must block on the row lock")
	case <-time.After(300 * time.Millisecond):
	}
	close(release)
	s.Require().NoError(<-done)
	s.Require().NoError(<-secondDone)

	found, err := s.Catalog.Products().FindByID(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{first, second}, found.Stores)
}

func TestPgCatalogSuite(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(PgCatalogSuite))
}
