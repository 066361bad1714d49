// Package db persists run history in PostgreSQL. It is optional: the
// service runs without it when no DATABASE_URL is configured.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoDatabaseURL is returned by OpenDB when no connection string is set.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// OpenDB opens a PostgreSQL connection pool using DATABASE_URL.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	// Run history is a handful of small writes per request.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
