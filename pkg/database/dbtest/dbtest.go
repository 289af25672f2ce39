//go:build integration

package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"

	"github.com/rocky-roll-call/rrc-backend/pkg/database"
)

// EnvDSN names the variable holding the test database URL.
const EnvDSN = "RRC_TEST_DATABASE_URL"

// Open connects to the database in EnvDSN, applies the migrations and empties
// every table when the test ends. The test is skipped when EnvDSN is unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 8}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `TRUNCATE castings, events, cast_page_sections, cast_relations, casts, profiles`)
		pool.Close()
	})
	return pool
}

// Profile inserts a profile and returns its ID.
func Profile(t *testing.T, pool *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO profiles (id, email, password_hash, name) VALUES ($1, $2, 'x', $3)`,
		id, id.String()+"@example.test", name)
	if err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return id
}
