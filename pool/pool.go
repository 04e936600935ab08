// Package pool owns native connection handles per logical database name,
// with idle reuse and eviction.
//
// All pool state is guarded by one mutex held for the full borrow, including
// the blocking I/O of opening a brand-new connection. That serializes
// concurrent borrowers behind a slow open; it is a deliberate
// correctness-over-throughput tradeoff preserved from the original design.
package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"polystore/driver"
	"polystore/fault"
)

// DefaultIdleCloseTimeout is how long a connection may sit idle before the
// next borrow scan closes it.
const DefaultIdleCloseTimeout = 5 * time.Minute

// Pooled is one borrowed or idle connection together with its pool
// bookkeeping. While idle it is owned exclusively by the pool; while
// borrowed, by exactly one caller. Never both.
type Pooled struct {
	conn     driver.Conn
	database string
	lastUsed time.Time
}

// Conn returns the native handle.
func (p *Pooled) Conn() driver.Conn { return p.conn }

// Database returns the logical database the connection is bound to.
func (p *Pooled) Database() string { return p.database }

// Option configures a Pool.
type Option func(*Pool)

// WithIdleCloseTimeout overrides the idle eviction timeout.
func WithIdleCloseTimeout(d time.Duration) Option {
	return func(p *Pool) { p.idleClose = d }
}

// WithLogger sets the logger used for eviction and open traces.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// Pool owns per-database native connections.
type Pool struct {
	mu        sync.Mutex
	drv       driver.Driver
	idle      []*Pooled // oldest first; most recently returned at the end
	inUse     map[*Pooled]struct{}
	idleClose time.Duration
	log       *slog.Logger
	closed    bool

	// now is replaced in tests to drive eviction deterministically.
	now func() time.Time
}

// New creates a pool over the given driver.
func New(drv driver.Driver, opts ...Option) *Pool {
	p := &Pool{
		drv:       drv,
		inUse:     map[*Pooled]struct{}{},
		idleClose: DefaultIdleCloseTimeout,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get borrows a connection for the logical database. Idle connections whose
// native state is no longer open, or whose idle time exceeds the close
// timeout, are closed and discarded as a side effect of the scan. If the
// driver cannot switch database context, only connections already bound to
// database are eligible; otherwise the first structurally valid idle
// connection is re-pointed. When no idle connection is eligible a new native
// connection is opened, with the pool lock still held.
//
// Get never returns a connection known to be closed.
func (p *Pool) Get(ctx context.Context, database string) (*Pooled, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fault.New(fault.Lifecycle, "pool.Get", "pool is cleared")
	}

	now := p.now()
	keep := p.idle[:0]
	var found *Pooled
	for _, c := range p.idle {
		// Housekeeping covers the whole idle set, including entries after
		// the one handed to the caller.
		if !c.conn.IsOpen() || now.Sub(c.lastUsed) > p.idleClose {
			p.log.Debug("evicting idle connection",
				"database", c.database, "idle", now.Sub(c.lastUsed).String())
			_ = c.conn.Close()
			continue
		}
		if found != nil {
			keep = append(keep, c)
			continue
		}
		if !p.drv.CanSwitchDatabase() && c.database != database {
			keep = append(keep, c)
			continue
		}
		if c.database != database {
			if err := c.conn.Switch(ctx, database); err != nil {
				_ = c.conn.Close()
				continue
			}
			c.database = database
		}
		found = c
	}
	p.idle = keep

	if found == nil {
		conn, err := p.drv.Open(ctx, database)
		if err != nil {
			return nil, fault.WithContext(fault.Connection, "pool.Get", database, "", err)
		}
		found = &Pooled{conn: conn, database: database}
		p.log.Debug("opened connection", "database", database)
	}

	found.lastUsed = now
	p.inUse[found] = struct{}{}
	return found, nil
}

// Return gives a borrowed connection back. When forceClose is false and the
// connection is still open it joins the most-recently-used end of the idle
// queue; otherwise it is closed and discarded. The caller's reference is
// invalid either way.
func (p *Pool) Return(c *Pooled, forceClose bool) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inUse, c)
	if p.closed || forceClose || !c.conn.IsOpen() {
		_ = c.conn.Close()
		return
	}
	c.lastUsed = p.now()
	p.idle = append(p.idle, c)
}

// Clear force-closes every idle and in-use connection and marks the pool
// cleared; later borrows fail with a lifecycle fault. Used at shutdown.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.idle {
		_ = c.conn.Close()
	}
	p.idle = nil
	for c := range p.inUse {
		_ = c.conn.Close()
		delete(p.inUse, c)
	}
	p.closed = true
}

// IdleCount reports the number of idle connections. Intended for tests and
// diagnostics.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InUseCount reports the number of borrowed connections.
func (p *Pool) InUseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
