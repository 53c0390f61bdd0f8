package query

import (
	"fmt"
	"sort"
	"strings"
)

// OperatorSeparator splits "field__operator" constraint keys
const OperatorSeparator = "__"

// Model is an ordered, named collection of columns scoped to one queryable
// entity. Column order determines positional correspondence with result rows.
type Model struct {
	name    string
	table   string
	columns []Column
	index   map[string]int
}

// NewModel declares a model; column names must be unique
func NewModel(name, table string, columns ...Column) (*Model, error) {
	m := &Model{
		name:    name,
		table:   table,
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}

	for _, col := range columns {
		if _, exists := m.index[col.Name()]; exists {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, name, col.Name())
		}

		m.index[col.Name()] = len(m.columns)
		m.columns = append(m.columns, col)
	}

	return m, nil
}

// Name returns the model name
func (m *Model) Name() string { return m.name }

// Table returns the table (or view) the model reads from
func (m *Model) Table() string { return m.table }

// Columns returns all columns in declaration order
func (m *Model) Columns() []Column {
	out := make([]Column, len(m.columns))
	copy(out, m.columns)

	return out
}

// Column looks up a column by name
func (m *Model) Column(name string) (Column, error) {
	i, ok := m.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, m.name, name)
	}

	return m.columns[i], nil
}

// SelectColumns returns the columns named in subset (all columns when subset
// is nil), restricted to groups when any are given. Declaration order is kept
// regardless of subset order; an unknown name fails the whole selection.
func (m *Model) SelectColumns(subset []string, groups ...Group) ([]Column, error) {
	var wanted map[string]bool

	if subset != nil {
		wanted = make(map[string]bool, len(subset))

		for _, name := range subset {
			if _, ok := m.index[name]; !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, m.name, name)
			}

			wanted[name] = true
		}
	}

	out := make([]Column, 0, len(m.columns))

	for _, col := range m.columns {
		if wanted != nil && !wanted[col.Name()] {
			continue
		}

		if len(groups) > 0 && !inGroups(col.Group(), groups) {
			continue
		}

		out = append(out, col)
	}

	return out, nil
}

func inGroups(g Group, groups []Group) bool {
	for _, candidate := range groups {
		if candidate == g {
			return true
		}
	}

	return false
}

// Constraints translates a dictionary keyed by "field" or "field__operator"
// into an AND of predicates. Keys are visited in sorted order so the rendered
// parameter order is deterministic.
func (m *Model) Constraints(constraints map[string]any) (Constraint, error) {
	keys := make([]string, 0, len(constraints))
	for key := range constraints {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	predicates := make([]Constraint, 0, len(keys))

	for _, key := range keys {
		field, opName, hasOp := strings.Cut(key, OperatorSeparator)

		op := OpEq
		if hasOp {
			parsed, err := ParseOperator(opName)
			if err != nil {
				return nil, fmt.Errorf("constraint %q: %w", key, err)
			}

			op = parsed
		}

		col, err := m.Column(field)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", key, err)
		}

		predicate, err := Compare(col, op, constraints[key])
		if err != nil {
			return nil, fmt.Errorf("constraint %q: %w", key, err)
		}

		predicates = append(predicates, predicate)
	}

	return And(predicates...), nil
}

// ParentConstraints scopes rows to already-resolved parent breakdown groups:
// each parent becomes an AND group and the groups are OR-ed together.
func (m *Model) ParentConstraints(parents []map[string]any) (Constraint, error) {
	groups := make([]Constraint, 0, len(parents))

	for i, parent := range parents {
		c, err := m.Constraints(parent)
		if err != nil {
			return nil, fmt.Errorf("parent %d: %w", i, err)
		}

		// an unconstrained parent admits every row
		if isEmpty(c) {
			return And(), nil
		}

		groups = append(groups, c)
	}

	return Or(groups...), nil
}

// OrderColumns resolves "+alias"/"-alias" ordering specs
func (m *Model) OrderColumns(order []string) ([]*OrderColumn, error) {
	out := make([]*OrderColumn, 0, len(order))

	for _, alias := range order {
		col, err := m.Column(CleanAlias(alias))
		if err != nil {
			return nil, fmt.Errorf("order %q: %w", alias, err)
		}

		out = append(out, NewOrderColumn(col, GetOrder(alias) == OrderDesc))
	}

	return out, nil
}

// Validate renders every column once so that missing templates and other
// declaration errors surface before any query is executed.
func (m *Model) Validate() error {
	for _, col := range m.columns {
		if _, _, err := col.Render(""); err != nil {
			return fmt.Errorf("model %s: %w", m.name, err)
		}
	}

	return nil
}
