// Package query builds the catalog SELECT statements from a projection of
// view names onto qualified columns. Conditions with nil values are skipped,
// so optional filters chain without branching.
package query

import "strings"

// ProjectionMap maps view names (the JSON field names the API sorts and
// filters by) onto alias-qualified columns of one table.
type ProjectionMap struct {
	from    string
	alias   string
	byView  map[string]string
	ordered []string
}

// NewProjectionMap starts a projection over schema.table under alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		from:   schema + "." + table + " " + alias,
		alias:  alias,
		byView: map[string]string{},
	}
}

// Project selects column under viewName. Columns are selected in the order
// they are projected, which is the order Scan receives them.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.byView[viewName] = qualified
	p.ordered = append(p.ordered, qualified)
	return p
}

// Table returns the FROM reference, "schema.table alias".
func (p *ProjectionMap) Table() string {
	return p.from
}

// Column resolves a view name. ok is false for names never projected.
func (p *ProjectionMap) Column(viewName string) (col string, ok bool) {
	col, ok = p.byView[viewName]
	return col, ok
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.ordered, ", ")
}

func (p *ProjectionMap) mustColumn(viewName string) string {
	col, ok := p.byView[viewName]
	if !ok {
		panic("query: " + viewName + " is not projected on " + p.from)
	}
	return col
}
