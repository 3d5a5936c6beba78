// Package pgcluster asks a running PostgreSQL cluster about itself.
package pgcluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marmos91/dittostore/internal/logger"
)

// DefaultConnectTimeout bounds the connection attempt when ctx has no
// deadline.
const DefaultConnectTimeout = 10 * time.Second

var (
	// ErrNoConnString indicates discovery was requested without a
	// connection string.
	ErrNoConnString = errors.New("postgres connection string is required")

	// ErrEmptyDataDirectory indicates the server reported an empty
	// data_directory setting.
	ErrEmptyDataDirectory = errors.New("postgres reported an empty data directory")
)

// Querier is the subset of *pgx.Conn used here.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DataDirectory connects with connString and returns the data directory of
// the cluster.
func DataDirectory(ctx context.Context, connString string) (string, error) {
	if connString == "" {
		return "", ErrNoConnString
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConnectTimeout)
		defer cancel()
	}

	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return "", fmt.Errorf("invalid postgres connection string: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to connect to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	dir, err := QueryDataDirectory(ctx, conn)
	if err != nil {
		return "", err
	}
	logger.DebugCtx(ctx, "postgres data directory discovered",
		"host", cfg.Host, "port", cfg.Port, logger.KeyPath, dir)
	return dir, nil
}

// QueryDataDirectory runs SHOW data_directory on q.
func QueryDataDirectory(ctx context.Context, q Querier) (string, error) {
	var dir string
	if err := q.QueryRow(ctx, "SHOW data_directory").Scan(&dir); err != nil {
		return "", fmt.Errorf("failed to query data_directory: %w", err)
	}
	if dir == "" {
		return "", ErrEmptyDataDirectory
	}
	return dir, nil
}
