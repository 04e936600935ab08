// Package polystore assembles the storage pipeline from configuration: a
// sqlite driver routed through the logical database table, a connection pool
// with the configured idle timeout, and a retrying executor on top.
//
// The sub-packages compose freely; this package is only the default wiring.
package polystore

import (
	"log/slog"
	"os"

	"polystore/config"
	"polystore/driver"
	"polystore/driver/sqlite"
	"polystore/executor"
	"polystore/pool"
)

// Store is one wired driver/pool/executor pipeline.
type Store struct {
	drv  driver.Driver
	pool *pool.Pool
	exec *executor.Executor
	log  *slog.Logger
}

// Open wires a store from the given configuration. A nil cfg uses defaults.
func Open(cfg *config.Config) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))

	drv := sqlite.New(cfg.Databases)
	p := pool.New(drv,
		pool.WithIdleCloseTimeout(cfg.Timeouts.IdleClose.Duration()),
		pool.WithLogger(log))
	e := executor.New(drv, p,
		executor.WithMaxRetries(cfg.Retry.MaxErrorRetries),
		executor.WithCommandTimeout(cfg.Timeouts.Command.Duration()),
		executor.WithLayoutValidation(),
		executor.WithLogger(log))

	return &Store{drv: drv, pool: p, exec: e, log: log}
}

// Driver returns the underlying driver.
func (s *Store) Driver() driver.Driver { return s.drv }

// Pool returns the connection pool.
func (s *Store) Pool() *pool.Pool { return s.pool }

// Executor returns the retrying executor.
func (s *Store) Executor() *executor.Executor { return s.exec }

// Logger returns the configured logger.
func (s *Store) Logger() *slog.Logger { return s.log }

// Close force-closes every pooled connection. The store is unusable
// afterward.
func (s *Store) Close() {
	s.pool.Clear()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
