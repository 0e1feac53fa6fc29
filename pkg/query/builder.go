package query

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/metainfo/pkg/pagination"
)

// Builder accumulates conditions and ordering for SELECT statements.
// Clauses use '?' placeholders that are numbered $1..$n on build.
type Builder struct {
	projection  *Projection
	clauses     []string
	args        []any
	order       []pagination.SortField
	defaultSort []pagination.SortField
}

// NewBuilder creates a Builder for projection with an optional default sort.
func NewBuilder(projection *Projection, defaultSort ...pagination.SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// Equals adds "field = value" when value is non-nil. Unmapped fields are ignored.
func Equals[T any](b *Builder, field string, value *T) *Builder {
	if value == nil {
		return b
	}
	if col, ok := b.projection.Column(field); ok {
		b.where(col+" = ?", *value)
	}
	return b
}

// Contains adds a case-insensitive substring match when value is non-empty.
func (b *Builder) Contains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	if col, ok := b.projection.Column(field); ok {
		b.where(col+" ILIKE ?", "%"+escapeLike(*value)+"%")
	}
	return b
}

// Search adds one OR group matching search against every field.
func (b *Builder) Search(search *string, fields ...string) *Builder {
	if search == nil || *search == "" {
		return b
	}

	pattern := "%" + escapeLike(*search) + "%"
	var parts []string
	var args []any
	for _, field := range fields {
		if col, ok := b.projection.Column(field); ok {
			parts = append(parts, col+" ILIKE ?")
			args = append(args, pattern)
		}
	}
	if len(parts) > 0 {
		b.where("("+strings.Join(parts, " OR ")+")", args...)
	}
	return b
}

// OrderBy replaces the default sort. Fields the projection does not map
// are dropped.
func (b *Builder) OrderBy(fields []pagination.SortField) *Builder {
	b.order = fields
	return b
}

// Build returns the filtered, ordered SELECT.
func (b *Builder) Build() (string, []any) {
	q := fmt.Sprintf("SELECT %s FROM %s%s%s",
		b.projection.Columns(), b.projection.From(), b.whereClause(), b.orderClause())
	return number(q), b.args
}

// Count returns a COUNT(*) over the current conditions.
func (b *Builder) Count() (string, []any) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), b.whereClause())
	return number(q), b.args
}

// Page returns the SELECT limited to one page.
func (b *Builder) Page(page, pageSize int) (string, []any) {
	q, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", q, pageSize, (page-1)*pageSize), args
}

// Single returns a SELECT of the row whose field equals value.
func (b *Builder) Single(field string, value any) (string, []any) {
	col, ok := b.projection.Column(field)
	if !ok {
		col = field
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(), b.projection.From(), col)
	return q, []any{value}
}

func (b *Builder) where(clause string, args ...any) {
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
}

func (b *Builder) whereClause() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (b *Builder) orderClause() string {
	fields := b.order
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var parts []string
	for _, f := range fields {
		col, ok := b.projection.Column(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			parts = append(parts, col+" DESC")
		} else {
			parts = append(parts, col+" ASC")
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func number(q string) string {
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
