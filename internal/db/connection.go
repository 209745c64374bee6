package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx pool with display metadata.
type DB struct {
	Pool     *pgxpool.Pool
	host     string
	port     string
	user     string
	database string
}

// BuildURI assembles a connection URI from its parts.
func BuildURI(host, port, user, password, database string) string {
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     "/" + database,
		RawQuery: "sslmode=prefer",
	}
	if password == "" {
		u.User = url.User(user)
	}
	return u.String()
}

// Connect opens a pool from a raw URI and pings it with a 10-second timeout.
func Connect(ctx context.Context, uri string) (*DB, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI: %w", err)
	}

	// Ensure sslmode is set if not already present
	q := parsed.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
		parsed.RawQuery = q.Encode()
	}

	port := parsed.Port()
	if port == "" {
		port = "5432"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, parsed.String())
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", parsed.Hostname(), err)
	}

	return &DB{
		Pool:     pool,
		host:     parsed.Hostname(),
		port:     port,
		user:     parsed.User.Username(),
		database: strings.TrimPrefix(parsed.Path, "/"),
	}, nil
}

// Database returns the current database name.
func (d *DB) Database() string {
	return d.database
}

// Close closes the pool.
func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// ConnInfo returns a display-safe connection string (no password).
func (d *DB) ConnInfo() string {
	return fmt.Sprintf("postgres://%s@%s:%s/%s", d.user, d.host, d.port, d.database)
}
