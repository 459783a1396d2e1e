package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"customer-insights/internal/common/config"
	commonerrors "customer-insights/internal/common/errors"

	"github.com/lib/pq"
)

const (
	defaultPostgresMaxOpen = 10
	defaultPostgresMaxIdle = 5
	postgresConnLifetime   = 5 * time.Minute
)

// PostgresClient is the warehouse pool queried by the SQL analytics backend.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool lazily; call Ping to verify the server.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxConnections, cfg.MaxIdle
	if maxOpen <= 0 {
		maxOpen = defaultPostgresMaxOpen
	}
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = min(defaultPostgresMaxIdle, maxOpen)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(postgresConnLifetime)
	db.SetConnMaxIdleTime(postgresConnLifetime)

	return &PostgresClient{DB: db}, nil
}

func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return commonerrors.NewDatabaseConnectionFailedError(fmt.Errorf("postgres ping failed: %w", err))
	}
	return nil
}

func (c *PostgresClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

// MissingFunctions returns, sorted, the names that have no stored function in
// the connected database.
func (c *PostgresClient) MissingFunctions(ctx context.Context, names ...string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows, err := c.DB.QueryContext(ctx,
		"SELECT DISTINCT proname FROM pg_proc WHERE proname = ANY($1)", pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to list stored functions: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(names))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan function name: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, n := range names {
		if !found[n] {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
