// Package testenv connects registry tests to a live PostgreSQL.
//
// Tests asking for a registry are gated on MODELYARD_TEST_DSN: without
// it they skip, so a plain test run stays database-free.
package testenv

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"

	registries "github.com/modelyard/modelyard/pkg/registry/postgres"
)

type pg struct {
	dsn  string
	pool *pgxpool.Pool
}

func (p *pg) GetRegistry(ctx context.Context, t *testing.T) *registries.Registry {
	t.Helper()

	reg, err := registries.New(ctx, p.dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(reg.Close)
	if err := reg.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		t.Helper()
		ClearTables(ctx, p.pool, t)
	})
	ClearTables(ctx, p.pool, t)
	return reg
}

// RegistryBroaker is a interface to get a registry on a real database.
type RegistryBroaker interface {
	// GetRegistry returns a registry with its schema in place.
	//
	// Tables are cleaned up before returning and after t.
	GetRegistry(ctx context.Context, t *testing.T) *registries.Registry
}

// NewRegistryBroaker returns a RegistryBroaker over the database at
// MODELYARD_TEST_DSN, or skips t when the variable is not set.
func NewRegistryBroaker(ctx context.Context, t *testing.T) RegistryBroaker {
	t.Helper()

	dsn := os.Getenv("MODELYARD_TEST_DSN")
	if dsn == "" {
		t.Skip("MODELYARD_TEST_DSN is not set. skip tests needing postgres.")
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	return &pg{dsn: dsn, pool: pool}
}

func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	for _, command := range []string{
		`truncate "model" restart identity cascade`,
		// by cascade, versions, metrics and aliases go with it.
	} {
		if _, err := conn.Exec(ctx, command); err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
		}
	}
}
