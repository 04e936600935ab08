package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polystore/driver"
	"polystore/driver/drivertest"
	"polystore/fault"
	"polystore/pool"
	"polystore/schema"
)

func newExecutor(drv *drivertest.Driver, opts ...Option) *Executor {
	return New(drv, pool.New(drv), opts...)
}

func TestExecute(t *testing.T) {
	drv := drivertest.New()
	drv.QueueExec(3)
	e := newExecutor(drv)

	affected, err := e.Execute(context.Background(), "main", "users",
		"DELETE FROM users WHERE age < @min", []driver.Parameter{{Name: "min", Value: int64(18)}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	cmd := drv.LastCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "DELETE FROM users WHERE age < @min", cmd.Text)
	assert.Equal(t, int64(18), cmd.Named["min"])
	assert.Empty(t, cmd.Pos)
}

func TestExecuteBindsPositionallyWithoutNamedSupport(t *testing.T) {
	drv := drivertest.New()
	drv.NamedParams = false
	drv.QueueExec(1)
	e := newExecutor(drv)

	_, err := e.Execute(context.Background(), "main", "users",
		"UPDATE users SET name = ? WHERE id = ?",
		[]driver.Parameter{{Name: "name", Value: "ada"}, {Name: "id", Value: int64(1)}})
	require.NoError(t, err)

	cmd := drv.LastCommand()
	assert.Equal(t, []any{"ada", int64(1)}, cmd.Pos)
	assert.Empty(t, cmd.Named)
}

func TestExecuteRetriesUpToCeiling(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextExecutes(10)
	e := newExecutor(drv, WithMaxRetries(2))

	_, err := e.Execute(context.Background(), "main", "users", "DELETE FROM users", nil)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Connection))

	// A ceiling of two retries means exactly three attempts.
	assert.Len(t, drv.Commands(), 3)
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextExecutes(2)
	drv.QueueExec(7)
	e := newExecutor(drv)

	affected, err := e.Execute(context.Background(), "main", "users", "DELETE FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), affected)
	assert.Len(t, drv.Commands(), 3)
}

func TestFailedConnectionsAreNeverReused(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextExecutes(1)
	drv.QueueExec(1)
	e := newExecutor(drv)

	_, err := e.Execute(context.Background(), "main", "users", "DELETE FROM users", nil)
	require.NoError(t, err)

	conns := drv.Conns()
	require.Len(t, conns, 2, "the failed connection must be replaced, not reused")
	assert.False(t, conns[0].IsOpen(), "the failed connection must be closed")
	assert.True(t, conns[1].IsOpen())
}

func TestRetriesDisabled(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextExecutes(1)
	e := newExecutor(drv, WithMaxRetries(0))

	_, err := e.Execute(context.Background(), "main", "users", "DELETE FROM users", nil)
	require.Error(t, err)
	assert.Len(t, drv.Commands(), 1)
}

func queueUserRows(drv *drivertest.Driver, rows [][]any) {
	drv.QueueRows([]schema.Column{
		{Name: "id", DeclType: "INTEGER", IsID: true},
		{Name: "name", DeclType: "TEXT"},
	}, rows)
}

func TestQueryDecodesRows(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, [][]any{{int64(1), "ada"}, {int64(2), []byte("grace")}})
	e := newExecutor(drv)

	layout, rows, err := e.Query(context.Background(), "main", "users", "SELECT * FROM users", nil, nil)
	require.NoError(t, err)

	require.Equal(t, 2, layout.Len())
	assert.Equal(t, "id", layout.Field(0).Name)
	assert.Equal(t, schema.TypeInt64, layout.Field(0).Type)

	require.Len(t, rows, 2)
	assert.Equal(t, Row{int64(1), "ada"}, rows[0])
	// Byte slices coerce into the string domain during decoding.
	assert.Equal(t, Row{int64(2), "grace"}, rows[1])
}

func TestQueryValidatesDeclaredLayout(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, nil)
	e := newExecutor(drv, WithLayoutValidation())

	declared := schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true},
		schema.FieldProperties{Name: "name", Type: schema.TypeFloat},
	)

	_, _, err := e.Query(context.Background(), "main", "users", "SELECT * FROM users", nil, &declared)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Data))
	// Structural faults surface immediately; no retry.
	assert.Len(t, drv.Commands(), 1)
}

func TestQueryRow(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, [][]any{{int64(1), "ada"}})
	e := newExecutor(drv)

	_, row, err := e.QueryRow(context.Background(), "main", "users", "SELECT * FROM users WHERE id = 1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Row{int64(1), "ada"}, row)
}

func TestQueryRowNoData(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, nil)
	e := newExecutor(drv)

	_, _, err := e.QueryRow(context.Background(), "main", "users", "SELECT * FROM users WHERE id = 99", nil, nil)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Data))
	assert.Contains(t, err.Error(), "No data available: SELECT * FROM users WHERE id = 99")
	assert.Len(t, drv.Commands(), 1)
}

func TestQueryRowAdditionalData(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, [][]any{{int64(1), "ada"}, {int64(2), "grace"}})
	e := newExecutor(drv)

	_, _, err := e.QueryRow(context.Background(), "main", "users", "SELECT * FROM users", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Additional data available, 2 rows: SELECT * FROM users")
}

func TestQueryValue(t *testing.T) {
	drv := drivertest.New()
	drv.QueueRows([]schema.Column{{Name: "n", DeclType: "INTEGER"}}, [][]any{{int64(42)}})
	e := newExecutor(drv)

	v, err := e.QueryValue(context.Background(), "main", "users", "SELECT COUNT(*) FROM users", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestQueryValueRejectsWideResults(t *testing.T) {
	drv := drivertest.New()
	queueUserRows(drv, [][]any{{int64(1), "ada"}})
	e := newExecutor(drv)

	_, err := e.QueryValue(context.Background(), "main", "users", "SELECT * FROM users", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Additional data available")
}

func TestQueryValueRejectsMultipleRows(t *testing.T) {
	drv := drivertest.New()
	drv.QueueRows([]schema.Column{{Name: "n", DeclType: "INTEGER"}}, [][]any{{int64(1)}, {int64(2)}})
	e := newExecutor(drv)

	_, err := e.QueryValue(context.Background(), "main", "users", "SELECT n FROM users", nil)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Data))
	assert.Contains(t, err.Error(), "Additional data available, 2 rows: SELECT n FROM users")
}

func TestQuerySchemaFallback(t *testing.T) {
	// The fake driver has no introspection, so the executor probes with an
	// empty result set.
	drv := drivertest.New()
	queueUserRows(drv, nil)
	e := newExecutor(drv)

	layout, err := e.QuerySchema(context.Background(), "main", "users")
	require.NoError(t, err)
	assert.Equal(t, 2, layout.Len())
	assert.Equal(t, `SELECT * FROM "users" WHERE 1=0`, drv.LastCommand().Text)
}

func TestQueryRetriesTransientFailures(t *testing.T) {
	drv := drivertest.New()
	drv.FailNextQueries(1)
	queueUserRows(drv, [][]any{{int64(1), "ada"}})
	e := newExecutor(drv)

	_, rows, err := e.Query(context.Background(), "main", "users", "SELECT * FROM users", nil, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, drv.Commands(), 2)
}
