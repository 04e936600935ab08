// Package drivertest provides a scriptable in-memory driver for exercising
// the pool and the retry pipeline without a real engine. Faults are injected
// as explicit queued results, so tests are deterministic.
package drivertest

import (
	"context"
	"sync"
	"time"

	"polystore/driver"
	"polystore/fault"
	"polystore/schema"
)

type execStep struct {
	affected int64
	err      error
}

type queryStep struct {
	cols []schema.Column
	rows [][]any
	err  error
}

// Driver is a scriptable driver.Driver. The zero value is not usable; call
// New.
type Driver struct {
	mu sync.Mutex

	Switchable  bool
	NamedParams bool

	openErrs   []error
	execSteps  []execStep
	querySteps []queryStep

	conns    []*Conn
	lastCmds []*Command
}

func New() *Driver {
	return &Driver{NamedParams: true}
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) CanSwitchDatabase() bool { return d.Switchable }

func (d *Driver) SupportsNamedParameters() bool { return d.NamedParams }

func (d *Driver) AdjustField(f schema.FieldProperties) schema.FieldProperties { return f }

func (d *Driver) EscapeFieldName(name string) string { return `"` + name + `"` }

// FailNextOpen queues an error for the next Open call.
func (d *Driver) FailNextOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErrs = append(d.openErrs, err)
}

// QueueExec queues a successful Execute result.
func (d *Driver) QueueExec(affected int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execSteps = append(d.execSteps, execStep{affected: affected})
}

// FailNextExecutes queues n failing Execute results classified as
// connection faults.
func (d *Driver) FailNextExecutes(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.execSteps = append(d.execSteps,
			execStep{err: fault.New(fault.Connection, "fake.Execute", "injected failure")})
	}
}

// QueueRows queues a successful Query result.
func (d *Driver) QueueRows(cols []schema.Column, rows [][]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.querySteps = append(d.querySteps, queryStep{cols: cols, rows: rows})
}

// FailNextQueries queues n failing Query results classified as connection
// faults.
func (d *Driver) FailNextQueries(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.querySteps = append(d.querySteps,
			queryStep{err: fault.New(fault.Connection, "fake.Query", "injected failure")})
	}
}

func (d *Driver) Open(ctx context.Context, database string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.openErrs) > 0 {
		err := d.openErrs[0]
		d.openErrs = d.openErrs[1:]
		return nil, err
	}
	c := &Conn{drv: d, database: database, open: true}
	d.conns = append(d.conns, c)
	return c, nil
}

// Conns returns every connection the driver ever opened.
func (d *Driver) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Conn, len(d.conns))
	copy(out, d.conns)
	return out
}

// OpenCount reports how many connections were opened in total.
func (d *Driver) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// LastCommand returns the most recently executed command, if any.
func (d *Driver) LastCommand() *Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lastCmds) == 0 {
		return nil
	}
	return d.lastCmds[len(d.lastCmds)-1]
}

// Commands returns every command executed through the driver.
func (d *Driver) Commands() []*Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Command, len(d.lastCmds))
	copy(out, d.lastCmds)
	return out
}

func (d *Driver) nextExec() execStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.execSteps) == 0 {
		return execStep{}
	}
	s := d.execSteps[0]
	d.execSteps = d.execSteps[1:]
	return s
}

func (d *Driver) nextQuery() queryStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.querySteps) == 0 {
		return queryStep{}
	}
	s := d.querySteps[0]
	d.querySteps = d.querySteps[1:]
	return s
}

func (d *Driver) record(c *Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastCmds = append(d.lastCmds, c)
}

// Conn is a fake native handle.
type Conn struct {
	mu       sync.Mutex
	drv      *Driver
	database string
	open     bool
	switches int
}

func (c *Conn) Database() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database
}

func (c *Conn) Switch(ctx context.Context, database string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.drv.Switchable {
		return fault.New(fault.Config, "fake.Switch", "driver cannot switch database")
	}
	c.database = database
	c.switches++
	return nil
}

// Switches reports how often the connection was re-pointed.
func (c *Conn) Switches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switches
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SetOpen flips the simulated native state, e.g. to fake a dropped
// connection while it sits idle in the pool.
func (c *Conn) SetOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *Conn) Command(text string) driver.Command {
	return &Command{conn: c, Text: text, Named: map[string]any{}}
}

// Command records its bindings for assertions.
type Command struct {
	conn    *Conn
	Text    string
	Timeout time.Duration
	Named   map[string]any
	Pos     []any
}

func (c *Command) SetTimeout(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	c.Timeout = d
}

func (c *Command) BindName(name string, value any) { c.Named[name] = value }

func (c *Command) BindPosition(value any) { c.Pos = append(c.Pos, value) }

func (c *Command) Execute(ctx context.Context) (int64, error) {
	c.conn.drv.record(c)
	step := c.conn.drv.nextExec()
	if step.err != nil {
		return 0, step.err
	}
	return step.affected, nil
}

func (c *Command) Query(ctx context.Context) (driver.Rows, error) {
	c.conn.drv.record(c)
	step := c.conn.drv.nextQuery()
	if step.err != nil {
		return nil, step.err
	}
	return &Rows{cols: step.cols, rows: step.rows, pos: -1}, nil
}

// Rows replays a scripted result set.
type Rows struct {
	cols   []schema.Column
	rows   [][]any
	pos    int
	closed bool
}

func (r *Rows) Columns() ([]schema.Column, error) { return r.cols, nil }

func (r *Rows) FieldCount() int { return len(r.cols) }

func (r *Rows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *Rows) Scan() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil, fault.New(fault.Data, "fake.Scan", "scan outside row")
	}
	return r.rows[r.pos], nil
}

func (r *Rows) Err() error { return nil }

func (r *Rows) Close() error {
	r.closed = true
	return nil
}
