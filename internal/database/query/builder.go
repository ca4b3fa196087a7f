// Package query builds parameterized WHERE/ORDER/LIMIT plans that the
// database layer applies to gorm queries. It has no database dependency so
// plans can be compared in tests.
package query

import (
	"fmt"
	"strings"
)

// WhereBuilder collects AND-joined SQL predicates with their bind arguments.
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("operacion", "venta").AddMin("habitaciones", 3)
//	where, args := wb.Build()
//	// operacion = ? AND habitaciones >= ?
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw predicate with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEquals adds "column = ?".
func (wb *WhereBuilder) AddEquals(column string, value interface{}) *WhereBuilder {
	return wb.AddClause(column+" = ?", value)
}

// AddNotEquals adds "column <> ?".
func (wb *WhereBuilder) AddNotEquals(column string, value interface{}) *WhereBuilder {
	return wb.AddClause(column+" <> ?", value)
}

// AddMin adds "column >= ?".
func (wb *WhereBuilder) AddMin(column string, value interface{}) *WhereBuilder {
	return wb.AddClause(column+" >= ?", value)
}

// AddBetween adds an inclusive "column BETWEEN ? AND ?".
func (wb *WhereBuilder) AddBetween(column string, lo, hi interface{}) *WhereBuilder {
	return wb.AddClause(column+" BETWEEN ? AND ?", lo, hi)
}

// Len returns the number of predicates added so far.
func (wb *WhereBuilder) Len() int {
	return len(wb.clauses)
}

// Build joins the predicates with AND. Returns ("1=1", []) when empty.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// Plan is one bounded listing query: the same Where/Args drive both the page
// fetch and the total count, so pagination metadata always matches the slice.
type Plan struct {
	Where   string
	Args    []interface{}
	OrderBy string
	Offset  int
	Limit   int
}

// NewPlan freezes the builder's predicates into a Plan.
func NewPlan(wb *WhereBuilder, orderBy string, offset, limit int) Plan {
	where, args := wb.Build()
	return Plan{
		Where:   where,
		Args:    args,
		OrderBy: orderBy,
		Offset:  offset,
		Limit:   limit,
	}
}

// String renders the plan for logs and cache diagnostics.
func (p Plan) String() string {
	return fmt.Sprintf("WHERE %s %v ORDER BY %s LIMIT %d OFFSET %d", p.Where, p.Args, p.OrderBy, p.Limit, p.Offset)
}
