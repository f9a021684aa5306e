//go:build integration

// Package dbtest starts a throwaway PostgreSQL container with the schema applied.
package dbtest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"littlelemon/internal/database"
	"littlelemon/internal/logger"
)

// New returns a migrated database that is torn down when t finishes.
func New(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("littlelemon"),
		postgres.WithUsername("littlelemon"),
		postgres.WithPassword("littlelemon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.NewFromPool(pool, logger.NewWithOptions("dbtest", logger.Options{Output: io.Discard}))
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

// User inserts a user and returns its id.
func User(t *testing.T, db *database.DB, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), database.UpsertUserSQL, username, username+"@example.com", false).Scan(&id)
	require.NoError(t, err)
	return id
}

// MenuItem inserts a menu item, creating its category, and returns the item id.
func MenuItem(t *testing.T, db *database.DB, title, price string) int64 {
	t.Helper()
	ctx := context.Background()
	var categoryID, id int64
	require.NoError(t, db.QueryRow(ctx, `INSERT INTO categories (name) VALUES ('Mains') RETURNING id`).Scan(&categoryID))
	require.NoError(t, db.QueryRow(ctx,
		`INSERT INTO menu_items (title, price, inventory, category_id) VALUES ($1, $2::numeric, 10, $3) RETURNING id`,
		title, price, categoryID).Scan(&id))
	return id
}
