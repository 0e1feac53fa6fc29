// Package query builds parameterized PostgreSQL statements over a projection
// of logical field names onto table columns.
package query

import (
	"fmt"
	"strings"
)

// Projection maps logical field names to alias-qualified columns of one table.
// Only mapped fields can appear in filters and ORDER BY clauses.
type Projection struct {
	table   string
	alias   string
	columns map[string]string
	order   []string
}

// NewProjection creates a Projection over schema.table using alias.
func NewProjection(schema, table, alias string) *Projection {
	return &Projection{
		table:   fmt.Sprintf("%s.%s", schema, table),
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Map adds column under the logical name field. Columns are selected in the
// order they are mapped.
func (p *Projection) Map(column, field string) *Projection {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.order = append(p.order, qualified)
	return p
}

// Column returns the qualified column for field.
func (p *Projection) Column(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// Columns returns the select list.
func (p *Projection) Columns() string {
	return strings.Join(p.order, ", ")
}

// From returns the table reference with its alias.
func (p *Projection) From() string {
	return p.table + " " + p.alias
}
