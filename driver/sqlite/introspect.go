package sqlite

import (
	"context"
	"strings"

	"polystore/driver"
	"polystore/fault"
	"polystore/schema"
)

// TableColumns describes a table through PRAGMA introspection, carrying the
// identifier, auto-increment and uniqueness flags that plain result-set
// metadata cannot report.
func (d *Driver) TableColumns(ctx context.Context, conn driver.Conn, table string) ([]schema.Column, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fault.New(fault.Config, "sqlite.TableColumns",
			"connection %T does not belong to the sqlite driver", conn)
	}
	if c.closed {
		return nil, fault.New(fault.Lifecycle, "sqlite.TableColumns", "connection is closed")
	}

	rs, err := c.db.QueryContext(ctx, `SELECT name, type, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fault.Wrap(fault.Connection, "sqlite.TableColumns", err)
	}
	defer rs.Close()

	var cols []schema.Column
	for rs.Next() {
		var (
			name, declType string
			pk             int
		)
		if err := rs.Scan(&name, &declType, &pk); err != nil {
			return nil, fault.Wrap(fault.Connection, "sqlite.TableColumns", err)
		}
		col := schema.Column{Name: name, DeclType: declType, IsID: pk == 1}
		// An INTEGER PRIMARY KEY is a rowid alias and auto-increments.
		if col.IsID && strings.Contains(strings.ToUpper(declType), "INT") {
			col.IsAutoIncrement = true
		}
		cols = append(cols, col)
	}
	if err := rs.Err(); err != nil {
		return nil, fault.Wrap(fault.Connection, "sqlite.TableColumns", err)
	}
	if len(cols) == 0 {
		return nil, fault.New(fault.Data, "sqlite.TableColumns", "table %q does not exist", table)
	}

	if err := d.markUnique(ctx, c, table, cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// markUnique flags columns covered by a single-column unique index.
func (d *Driver) markUnique(ctx context.Context, c *Conn, table string, cols []schema.Column) error {
	rs, err := c.db.QueryContext(ctx, `
		SELECT ii.name
		FROM pragma_index_list(?) il
		JOIN pragma_index_info(il.name) ii
		WHERE il."unique" = 1
		GROUP BY il.name
		HAVING COUNT(*) = 1`, table)
	if err != nil {
		return fault.Wrap(fault.Connection, "sqlite.TableColumns", err)
	}
	defer rs.Close()

	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return fault.Wrap(fault.Connection, "sqlite.TableColumns", err)
		}
		for i := range cols {
			if schema.CaseInsensitive.Equal(cols[i].Name, name) {
				cols[i].IsUnique = true
			}
		}
	}
	return fault.Wrap(fault.Connection, "sqlite.TableColumns", rs.Err())
}
