package query

import "strings"

// Sort directions
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// GetOrder maps a "-" prefixed alias to DESC and anything else to ASC
func GetOrder(alias string) string {
	if strings.HasPrefix(alias, "-") {
		return OrderDesc
	}

	return OrderAsc
}

// CleanAlias strips the "+" or "-" direction prefix from an alias
func CleanAlias(alias string) string {
	return strings.TrimLeft(alias, "+-")
}

// OrderColumn wraps a Column with a sort direction
type OrderColumn struct {
	Column
	desc bool
}

// NewOrderColumn wraps col for ordering
func NewOrderColumn(col Column, desc bool) *OrderColumn {
	return &OrderColumn{Column: col, desc: desc}
}

// Direction returns ASC or DESC
func (o *OrderColumn) Direction() string {
	if o.desc {
		return OrderDesc
	}

	return OrderAsc
}

// Render returns "<expression> <direction>"
func (o *OrderColumn) Render(prefix string) (string, []any, error) {
	sql, params, err := o.Column.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	return sql + " " + o.Direction(), params, nil
}

// AliasOrder returns "<alias> <direction>" for ORDER BY over selected aliases
func (o *OrderColumn) AliasOrder() string {
	return o.Name() + " " + o.Direction()
}
