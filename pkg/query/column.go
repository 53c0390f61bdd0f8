// Package query builds breakdown-aware SQL fragments: column registries,
// constraint trees and temp-table substitutions. Nothing in this package
// talks to a database.
package query

import (
	"fmt"
	"strings"
)

// Group classifies a column for breakdown vs aggregation purposes
type Group int

// Column groups
const (
	GroupBreakdown Group = iota + 1
	GroupAggregate
	GroupHelper
)

// String returns the group name
func (g Group) String() string {
	switch g {
	case GroupBreakdown:
		return "breakdown"
	case GroupAggregate:
		return "aggregate"
	case GroupHelper:
		return "helper"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// Renderable renders to SQL text plus the positional parameters its
// placeholders refer to, in placeholder order.
type Renderable interface {
	Render(prefix string) (string, []any, error)
}

// Column describes how a logical field maps to SQL
type Column interface {
	Renderable
	// Name is the semantic identifier, also used as the SQL alias
	Name() string
	// Group is the breakdown/aggregate classification
	Group() Group
	// AsAlias renders "<expression> AS <name>"
	AsAlias(prefix string) (string, []any, error)
}

// FragmentRenderer renders a named SQL template. The rendering registry
// implements it; template columns receive one at declaration.
type FragmentRenderer interface {
	GenerateSQL(name string, data map[string]any) (string, []any, error)
}

func qualify(prefix, column string) string {
	if prefix == "" {
		return column
	}

	return prefix + "." + column
}

func asAlias(c Column, prefix string) (string, []any, error) {
	sql, params, err := c.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	return sql + " AS " + c.Name(), params, nil
}

// PlainColumn is a bare column reference
type PlainColumn struct {
	name   string
	column string
	group  Group
}

// ColumnOption configures a PlainColumn
type ColumnOption func(*PlainColumn)

// WithColumnName references a physical column whose name differs from the alias
func WithColumnName(column string) ColumnOption {
	return func(c *PlainColumn) {
		c.column = column
	}
}

// NewColumn declares a plain column
func NewColumn(name string, group Group, opts ...ColumnOption) *PlainColumn {
	c := &PlainColumn{
		name:   name,
		column: name,
		group:  group,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the column alias
func (c *PlainColumn) Name() string { return c.name }

// Group returns the column group
func (c *PlainColumn) Group() Group { return c.group }

// Render returns the (optionally prefixed) column reference
func (c *PlainColumn) Render(prefix string) (string, []any, error) {
	return qualify(prefix, c.column), nil, nil
}

// AsAlias returns "<ref> AS <name>"
func (c *PlainColumn) AsAlias(prefix string) (string, []any, error) {
	return asAlias(c, prefix)
}

// TemplateColumn renders by filling a SQL fragment template, e.g. a SUM() or
// CASE expression. The template is resolved when the column is rendered, so an
// undefined template surfaces then; Model.Validate forces that early.
type TemplateColumn struct {
	name     string
	group    Group
	renderer FragmentRenderer
	template string
	context  map[string]any
}

// NewTemplateColumn declares a column backed by a fragment template
func NewTemplateColumn(name string, renderer FragmentRenderer, templateName string, context map[string]any, group Group) *TemplateColumn {
	ctx := make(map[string]any, len(context))
	for k, v := range context {
		ctx[k] = v
	}

	return &TemplateColumn{
		name:     name,
		group:    group,
		renderer: renderer,
		template: templateName,
		context:  ctx,
	}
}

// Name returns the column alias
func (c *TemplateColumn) Name() string { return c.name }

// Group returns the column group
func (c *TemplateColumn) Group() Group { return c.group }

// TemplateName returns the fragment template the column renders through
func (c *TemplateColumn) TemplateName() string { return c.template }

// Render fills the fragment template. The template sees its declared context
// plus "p" (the prefix followed by a dot, or empty) and "alias".
func (c *TemplateColumn) Render(prefix string) (string, []any, error) {
	if c.renderer == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrNoRenderer, c.name)
	}

	data := make(map[string]any, len(c.context)+2)
	for k, v := range c.context {
		data[k] = v
	}

	data["p"] = ""
	if prefix != "" {
		data["p"] = prefix + "."
	}

	data["alias"] = c.name

	sql, params, err := c.renderer.GenerateSQL(c.template, data)
	if err != nil {
		return "", nil, fmt.Errorf("column %s: %w", c.name, err)
	}

	return strings.TrimSpace(sql), params, nil
}

// AsAlias returns "<expression> AS <name>"
func (c *TemplateColumn) AsAlias(prefix string) (string, []any, error) {
	return asAlias(c, prefix)
}
