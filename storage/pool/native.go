package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/gostash/storage"
)

// Native wraps a pgx connection pool behind the common pool contract.
// The driver performs its own non-blocking I/O, so sessions are
// borrowed cooperatively rather than bridged through workers.
type Native struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NativeOption configures a Native pool.
type NativeOption func(*nativeConfig)

type nativeConfig struct {
	maxConns       int32
	registerVector bool
	logger         *slog.Logger
}

// WithMaxSessions bounds the number of concurrently live sessions.
func WithMaxSessions(n int32) NativeOption {
	return func(c *nativeConfig) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// WithVectorTypes registers pgvector's types on every new connection.
func WithVectorTypes() NativeOption {
	return func(c *nativeConfig) { c.registerVector = true }
}

// WithNativeLogger sets a custom logger. Default is slog.Default().
func WithNativeLogger(logger *slog.Logger) NativeOption {
	return func(c *nativeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewNative connects to a networked store and verifies reachability
// before returning, failing fast with a connectivity error otherwise.
func NewNative(ctx context.Context, databaseURL string, opts ...NativeOption) (*Native, error) {
	cfg := &nativeConfig{
		maxConns: 10,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %v", storage.ErrValidation, err)
	}
	poolCfg.MaxConns = cfg.maxConns
	if cfg.registerVector {
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConnectivity, err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: ping: %v", storage.ErrConnectivity, err)
	}

	return &Native{pool: p, logger: cfg.logger}, nil
}

// Acquire borrows a session from the pool, waiting until one is
// available or the context ends.
func (n *Native) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", storage.ErrPoolExhausted, err)
		}
		return nil, fmt.Errorf("%w: acquire: %v", storage.ErrConnectivity, err)
	}
	return conn, nil
}

// Pool exposes the underlying pgx pool for batch and transaction use.
func (n *Native) Pool() *pgxpool.Pool {
	return n.pool
}

// Size returns the configured maximum number of live sessions.
func (n *Native) Size() int {
	return int(n.pool.Config().MaxConns)
}

// Close tears the pool down, waiting for checked-out sessions to be
// released.
func (n *Native) Close() {
	n.pool.Close()
}
