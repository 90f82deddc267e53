package query

import (
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term. Field is a view name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads a sort parameter such as "name,-createdAt".
// A leading "-" sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// render writes a condition, calling bind for each argument to obtain its
// placeholder.
type render func(bind func(any) string) string

// Builder accumulates WHERE conditions and ordering for one projection.
// Filters name view fields the caller projected and panic otherwise. Sort
// fields come from requests, so unknown ones are dropped.
type Builder struct {
	projection  *ProjectionMap
	conditions  []render
	order       []SortField
	defaultSort []SortField
}

// NewBuilder returns a Builder over projection. defaultSort applies when
// OrderByFields leaves no usable field.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

// OrderByFields replaces the default ordering.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = fields
	return b
}

// WhereEquals adds col = value unless value is nil.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	return b.compare(field, "=", value)
}

// WhereAtLeast adds col >= value unless value is nil.
func (b *Builder) WhereAtLeast(field string, value any) *Builder {
	return b.compare(field, ">=", value)
}

// WhereContains adds a case-insensitive substring match unless value is
// nil or empty.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.WhereSearch(value, field)
}

// WhereSearch matches value as a substring of any of fields.
func (b *Builder) WhereSearch(value *string, fields ...string) *Builder {
	if value == nil || *value == "" || len(fields) == 0 {
		return b
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.mustColumn(f)
	}
	pattern := "%" + *value + "%"

	b.conditions = append(b.conditions, func(bind func(any) string) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = col + " ILIKE " + bind(pattern)
		}
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
	return b
}

// BuildCount returns SELECT COUNT(*) under the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.Table() + where, args
}

// BuildPage returns the page-th page (1-based) of pageSize rows.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	where, args := b.where()

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.projection.Columns())
	sb.WriteString(" FROM ")
	sb.WriteString(b.projection.Table())
	sb.WriteString(where)
	sb.WriteString(b.orderBy())
	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(pageSize))
	sb.WriteString(" OFFSET ")
	sb.WriteString(strconv.Itoa((page - 1) * pageSize))
	return sb.String(), args
}

// BuildSingle selects the row whose field equals id. Conditions already on
// the builder are ignored.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	return "SELECT " + b.projection.Columns() +
		" FROM " + b.projection.Table() +
		" WHERE " + b.projection.mustColumn(field) + " = $1", []any{id}
}

func (b *Builder) compare(field, op string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.mustColumn(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		return col + " " + op + " " + bind(value)
	})
	return b
}

// where renders the conditions, numbering placeholders from $1.
func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	clauses := make([]string, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = c(bind)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) orderBy() string {
	terms := b.sortTerms(b.order)
	if len(terms) == 0 {
		terms = b.sortTerms(b.defaultSort)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) sortTerms(fields []SortField) []string {
	var terms []string
	for _, f := range fields {
		col, ok := b.projection.Column(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}
	return terms
}

// isNil treats typed nil pointers, as optional filter fields are, like nil.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
