package rendering

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ethpandaops/statsql/pkg/query"
)

// paramCollector gathers the parameters of one render. Every function that
// emits a %s placeholder appends the matching value, so params end up in the
// order their placeholders appear in the output.
type paramCollector struct {
	params []any
}

func newParamCollector() *paramCollector {
	return &paramCollector{}
}

func (c *paramCollector) funcMap() template.FuncMap {
	return template.FuncMap{
		"param":     c.param,
		"where":     c.where,
		"columns":   c.columns,
		"asAlias":   c.asAlias,
		"aliases":   aliases,
		"orderBy":   orderBy,
		"tempJoins": c.tempJoins,
	}
}

// param emits a single placeholder for v
func (c *paramCollector) param(v any) string {
	c.params = append(c.params, v)

	return "%s"
}

// where renders a constraint tree; nil renders always-true
func (c *paramCollector) where(v any, prefix ...string) (string, error) {
	var constraint query.Constraint

	if v != nil {
		var ok bool
		if constraint, ok = v.(query.Constraint); !ok {
			return "", fmt.Errorf("%w: where expects a constraint, got %T", ErrBadArgument, v)
		}
	}

	sql, params, err := query.Generate(constraint, firstPrefix(prefix))
	if err != nil {
		return "", err
	}

	c.params = append(c.params, params...)

	return sql, nil
}

// columns renders comma-separated column expressions
func (c *paramCollector) columns(v any, prefix ...string) (string, error) {
	return c.join(v, ", ", func(col query.Column) (string, []any, error) {
		return col.Render(firstPrefix(prefix))
	})
}

// asAlias renders comma-separated "<expression> AS <name>" items
func (c *paramCollector) asAlias(v any, prefix ...string) (string, error) {
	return c.join(v, ", ", func(col query.Column) (string, []any, error) {
		return col.AsAlias(firstPrefix(prefix))
	})
}

func (c *paramCollector) join(v any, sep string, render func(query.Column) (string, []any, error)) (string, error) {
	cols, err := toColumns(v)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(cols))

	for _, col := range cols {
		sql, params, err := render(col)
		if err != nil {
			return "", err
		}

		parts = append(parts, sql)
		c.params = append(c.params, params...)
	}

	return strings.Join(parts, sep), nil
}

// tempJoins renders one JOIN clause per temp table
func (c *paramCollector) tempJoins(tables []*query.TempTable, prefix ...string) (string, error) {
	parts := make([]string, 0, len(tables))

	for _, t := range tables {
		sql, params, err := t.JoinSQL(firstPrefix(prefix))
		if err != nil {
			return "", err
		}

		parts = append(parts, sql)
		c.params = append(c.params, params...)
	}

	return strings.Join(parts, "\n"), nil
}

// aliases renders comma-separated column names
func aliases(v any) (string, error) {
	cols, err := toColumns(v)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Name())
	}

	return strings.Join(names, ", "), nil
}

// orderBy renders "<alias> <direction>" items over selected aliases
func orderBy(order []*query.OrderColumn) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		parts = append(parts, o.AliasOrder())
	}

	return strings.Join(parts, ", ")
}

func toColumns(v any) ([]query.Column, error) {
	switch cols := v.(type) {
	case nil:
		return nil, nil
	case []query.Column:
		return cols, nil
	case query.Column:
		return []query.Column{cols}, nil
	case []*query.OrderColumn:
		out := make([]query.Column, len(cols))
		for i, col := range cols {
			out[i] = col
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected columns, got %T", ErrBadArgument, v)
	}
}

func firstPrefix(prefix []string) string {
	if len(prefix) == 0 {
		return ""
	}

	return prefix[0]
}
