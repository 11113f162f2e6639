package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresClient manages the connection pool to PostgreSQL
type PostgresClient struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client. maxConns bounds the
// pool; zero keeps the pgxpool default.
func NewPostgresClient(ctx context.Context, connString string, maxConns int32) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool, db: stdlib.OpenDBFromPool(pool)}, nil
}

// Close closes the database/sql handle and the pool behind it
func (c *PostgresClient) Close() error {
	err := c.db.Close()
	c.pool.Close()
	return err
}

// GetDB returns a database/sql view of the pool
func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

// GetPool returns the underlying pool
func (c *PostgresClient) GetPool() *pgxpool.Pool {
	return c.pool
}
