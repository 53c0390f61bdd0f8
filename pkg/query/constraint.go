package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Operator is a constraint comparison operator
type Operator string

// Supported operators
const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpIn    Operator = "in"
	OpNotIn Operator = "notin"
)

// alwaysTrue is what an empty constraint renders to. Callers can therefore
// always emit a WHERE clause.
const alwaysTrue = "1=1"

const alwaysFalse = "1=0"

//nolint:gochecknoglobals // lookup table
var comparisonSQL = map[Operator]string{
	OpEq:  "=",
	OpNeq: "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// ParseOperator validates an operator name
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToLower(s))

	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
}

// Constraint is a composable boolean predicate. Rendering walks children in
// insertion order, so the returned params line up with the %s placeholders.
type Constraint interface {
	Renderable
	constraint()
}

// Scalar is the set of value types a typed constraint accepts
type Scalar interface {
	~string | ~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		time.Time
}

// Predicate is a leaf constraint: column, operator and values
type Predicate struct {
	column Column
	op     Operator
	values []any
}

func (*Predicate) constraint() {}

// Column returns the constrained column
func (p *Predicate) Column() Column { return p.column }

// Operator returns the comparison operator
func (p *Predicate) Operator() Operator { return p.op }

// Values returns a copy of the predicate values
func (p *Predicate) Values() []any {
	out := make([]any, len(p.values))
	copy(out, p.values)

	return out
}

// Render returns the predicate SQL with %s placeholders
func (p *Predicate) Render(prefix string) (string, []any, error) {
	if p.op == OpIn || p.op == OpNotIn {
		return p.renderList(prefix)
	}

	ref, colParams, err := p.column.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	if (p.op == OpEq || p.op == OpNeq) && p.values[0] == nil {
		if p.op == OpEq {
			return ref + " IS NULL", colParams, nil
		}

		return ref + " IS NOT NULL", colParams, nil
	}

	sign, ok := comparisonSQL[p.op]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownOperator, p.op)
	}

	params := make([]any, 0, len(colParams)+1)
	params = append(params, colParams...)

	return ref + sign + "%s", append(params, p.values[0]), nil
}

// renderList renders IN and NOT IN. A nil in the list stands for NULL and
// becomes an explicit IS [NOT] NULL term next to the list.
func (p *Predicate) renderList(prefix string) (string, []any, error) {
	values, hasNull := splitNull(p.values)

	if len(values) == 0 && !hasNull {
		if p.op == OpNotIn {
			return alwaysTrue, nil, nil
		}

		return alwaysFalse, nil, nil
	}

	ref, colParams, err := p.column.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	nullSQL, joiner := " IS NULL", " OR "
	keyword := " IN ("

	if p.op == OpNotIn {
		nullSQL, joiner = " IS NOT NULL", " AND "
		keyword = " NOT IN ("
	}

	if len(values) == 0 {
		return ref + nullSQL, colParams, nil
	}

	params := make([]any, 0, 2*len(colParams)+len(values))
	params = append(params, colParams...)
	params = append(params, values...)
	sql := ref + keyword + placeholders(len(values)) + ")"

	if !hasNull {
		return sql, params, nil
	}

	return "(" + sql + joiner + ref + nullSQL + ")", append(params, colParams...), nil
}

// splitNull returns values without nils and whether any nil was present
func splitNull(values []any) ([]any, bool) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}

	return out, len(out) != len(values)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("%s,", n), ",")
}

func newPredicate(col Column, op Operator, values []any) *Predicate {
	return &Predicate{column: col, op: op, values: values}
}

// Eq constrains col = value
func Eq[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpEq, []any{value})
}

// Neq constrains col != value
func Neq[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpNeq, []any{value})
}

// Gt constrains col > value
func Gt[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpGt, []any{value})
}

// Gte constrains col >= value
func Gte[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpGte, []any{value})
}

// Lt constrains col < value
func Lt[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpLt, []any{value})
}

// Lte constrains col <= value
func Lte[T Scalar](col Column, value T) Constraint {
	return newPredicate(col, OpLte, []any{value})
}

// In constrains col IN (values...). A single value still renders as IN (%s).
func In[T Scalar](col Column, values []T) Constraint {
	return newPredicate(col, OpIn, toAny(values))
}

// NotIn constrains col NOT IN (values...)
func NotIn[T Scalar](col Column, values []T) Constraint {
	return newPredicate(col, OpNotIn, toAny(values))
}

// IsNull constrains col IS NULL
func IsNull(col Column) Constraint {
	return newPredicate(col, OpEq, []any{nil})
}

// NotNull constrains col IS NOT NULL
func NotNull(col Column) Constraint {
	return newPredicate(col, OpNeq, []any{nil})
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}

	return out
}

// Compare builds a predicate from an untyped value, as found in constraint
// dictionaries. A list value turns eq into in and neq into notin.
func Compare(col Column, op Operator, value any) (Constraint, error) {
	if list, ok := asList(value); ok {
		switch op {
		case OpEq, OpIn:
			return newPredicate(col, OpIn, list), nil
		case OpNeq, OpNotIn:
			return newPredicate(col, OpNotIn, list), nil
		default:
			return nil, fmt.Errorf("%w: %s__%s does not accept a list", ErrInvalidValue, col.Name(), op)
		}
	}

	switch op {
	case OpIn, OpNotIn:
		return nil, fmt.Errorf("%w: %s__%s requires a list", ErrInvalidValue, col.Name(), op)
	case OpEq, OpNeq:
		return newPredicate(col, op, []any{value}), nil
	default:
		if value == nil {
			return nil, fmt.Errorf("%w: %s__%s does not accept null", ErrInvalidValue, col.Name(), op)
		}

		if _, ok := comparisonSQL[op]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
		}

		return newPredicate(col, op, []any{value}), nil
	}
}

func asList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}

	if _, ok := value.([]byte); ok {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// composite is an AND/OR node
type composite struct {
	op       string
	children []Constraint
}

func (*composite) constraint() {}

// And combines constraints with AND. Nil and empty children are dropped.
func And(cs ...Constraint) Constraint {
	return newComposite("AND", cs)
}

// Or combines constraints with OR. Nil and empty children are dropped.
func Or(cs ...Constraint) Constraint {
	return newComposite("OR", cs)
}

func newComposite(op string, cs []Constraint) *composite {
	children := make([]Constraint, 0, len(cs))
	for _, c := range cs {
		if isEmpty(c) {
			continue
		}

		children = append(children, c)
	}

	return &composite{op: op, children: children}
}

func isEmpty(c Constraint) bool {
	if c == nil {
		return true
	}

	node, ok := c.(*composite)

	return ok && len(node.children) == 0
}

// Render joins the children; two or more are parenthesized
func (c *composite) Render(prefix string) (string, []any, error) {
	switch len(c.children) {
	case 0:
		return alwaysTrue, nil, nil
	case 1:
		return c.children[0].Render(prefix)
	}

	parts := make([]string, 0, len(c.children))
	params := make([]any, 0, len(c.children))

	for _, child := range c.children {
		sql, childParams, err := child.Render(prefix)
		if err != nil {
			return "", nil, err
		}

		parts = append(parts, sql)
		params = append(params, childParams...)
	}

	return "(" + strings.Join(parts, " "+c.op+" ") + ")", params, nil
}

// negation is a NOT node
type negation struct {
	child Constraint
}

func (*negation) constraint() {}

// Not negates a constraint
func Not(c Constraint) Constraint {
	return &negation{child: c}
}

// Render returns NOT (<child>)
func (n *negation) Render(prefix string) (string, []any, error) {
	if isEmpty(n.child) {
		return alwaysFalse, nil, nil
	}

	sql, params, err := n.child.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	if node, ok := n.child.(*composite); ok && len(node.children) > 1 {
		return "NOT " + sql, params, nil
	}

	return "NOT (" + sql + ")", params, nil
}

// Generate renders a possibly nil constraint; nil renders as always-true
func Generate(c Constraint, prefix string) (string, []any, error) {
	if c == nil {
		return alwaysTrue, nil, nil
	}

	return c.Render(prefix)
}
