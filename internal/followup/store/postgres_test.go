package store

import (
	"context"
	"os"
	"testing"
	"time"

	"deal_followup_backend/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestPostgresStoreContract runs against a throwaway Postgres 16 container.
// Set FOLLOWUP_PG_INTEGRATION=1 to enable it, or FOLLOWUP_PG_DSN to reuse an
// existing database.
func TestPostgresStoreContract(t *testing.T) {
	if os.Getenv("FOLLOWUP_PG_INTEGRATION") != "1" && os.Getenv("FOLLOWUP_PG_DSN") == "" {
		t.Skip("set FOLLOWUP_PG_INTEGRATION=1 to run Postgres integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	dsn := os.Getenv("FOLLOWUP_PG_DSN")
	if dsn == "" {
		container, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("followups"),
			postgres.WithUsername("followups"),
			postgres.WithPassword("followups"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("connection string: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE follow_ups"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	runStoreContract(t, NewPostgresStore(pool))
}
