// Package testutil starts throwaway backing services for integration tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/izpodvypodvert/todoapi/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:17-alpine"
	redisImage    = "redis:7-alpine"
	pgCredential  = "todoapi"
)

// Postgres is a running PostgreSQL container. It is removed when the test
// that started it finishes.
type Postgres struct {
	url string
}

// URL returns a DSN usable by pgx and migrate.
func (p *Postgres) URL() string { return p.url }

// Redis is a running Redis container, removed with its test.
type Redis struct {
	url string
}

func (r *Redis) URL() string { return r.url }

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	return c
}

func endpoint(ctx context.Context, t *testing.T, c testcontainers.Container, port nat.Port) string {
	t.Helper()
	hostPort, err := c.PortEndpoint(ctx, port, "")
	if err != nil {
		t.Fatalf("resolve endpoint for %s: %v", port, err)
	}
	return hostPort
}

// StartPostgres runs an empty database. Use NewTestPool to migrate it.
func StartPostgres(ctx context.Context, t *testing.T) *Postgres {
	t.Helper()

	c := start(ctx, t, testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgCredential,
			"POSTGRES_PASSWORD": pgCredential,
			"POSTGRES_DB":       pgCredential,
		},
		// The server restarts once after init; only the second ready line counts.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(time.Minute),
	})

	return &Postgres{
		url: fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			pgCredential, pgCredential, endpoint(ctx, t, c, "5432/tcp"), pgCredential),
	}
}

// StartRedis runs a Redis server with an empty keyspace.
func StartRedis(ctx context.Context, t *testing.T) *Redis {
	t.Helper()

	c := start(ctx, t, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})

	return &Redis{url: "redis://" + endpoint(ctx, t, c, "6379/tcp") + "/0"}
}

// NewTestPool connects to pg, retrying while the server settles, and applies
// the embedded migrations. The pool is closed with the test.
func NewTestPool(ctx context.Context, t *testing.T, pg *Postgres) *pgxpool.Pool {
	t.Helper()

	var (
		pool *pgxpool.Pool
		err  error
	)
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{URL: pg.URL(), MaxConns: 8})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(pg.URL()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}

// appTables lists every table the migrations create, children first.
var appTables = []string{"todos", "oauth_accounts", "users"}

// TruncateAll empties the application tables between tests sharing a pool.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := "TRUNCATE TABLE " + strings.Join(appTables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
