package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/source"
)

var (
	errNoConnection      = errors.New("no database connection: pass --uri or name a saved connection")
	errUnknownConnection = errors.New("unknown saved connection")
)

// connections opens one pool per connection name and hands it out to every
// dataset that names it. The empty name is the session database.
type connections struct {
	mu         sync.Mutex
	cfg        *config.Config
	defaultURI string
	open       map[string]*db.DB
	dial       func(ctx context.Context, uri string) (*db.DB, error)
	logger     *zap.Logger
}

func newConnections(cfg *config.Config, defaultURI string, logger *zap.Logger) *connections {
	return &connections{
		cfg:        cfg,
		defaultURI: defaultURI,
		open:       make(map[string]*db.DB),
		dial:       db.Connect,
		logger:     logger,
	}
}

// resolve maps a connection name to its URI.
func (c *connections) resolve(name string) (string, error) {
	if name == "" {
		if c.defaultURI == "" {
			return "", errNoConnection
		}
		return c.defaultURI, nil
	}
	saved, ok := c.cfg.Find(name)
	if !ok {
		return "", fmt.Errorf("%w %q", errUnknownConnection, name)
	}
	return saved.URIFor(), nil
}

// adopt registers an already open database under the given names.
func (c *connections) adopt(d *db.DB, names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		c.open[n] = d
	}
}

// Get returns the database for name, connecting on first use.
func (c *connections) Get(ctx context.Context, name string) (*db.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.open[name]; ok {
		return d, nil
	}
	target, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	d, err := c.dial(ctx, target)
	if err != nil {
		return nil, err
	}
	c.logger.Info("connected", zap.String("connection", name), zap.String("server", d.ConnInfo()), zap.String("database", d.Database()))
	c.open[name] = d
	return d, nil
}

// Querier adapts Get to source.Deps.Connect.
func (c *connections) Querier(ctx context.Context, name string) (source.Querier, error) {
	d, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Close closes every pool once.
func (c *connections) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	closed := make(map[*db.DB]bool, len(c.open))
	for _, d := range c.open {
		if !closed[d] {
			d.Close()
			closed[d] = true
		}
	}
	c.open = make(map[string]*db.DB)
}
