package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// tempTableDomain separates temp-table name hashes from other hashes
const tempTableDomain = "statsql/temptable/v1"

// Statement is a SQL statement with its positional parameters
type Statement struct {
	SQL    string
	Params []any
}

// TempTable pushes a large value list into a query-scoped table that is
// joined in place of an inline IN list. It is itself a Constraint rendering
// "<col> IN (SELECT value FROM <name>)".
type TempTable struct {
	name      string
	column    Column
	values    []any
	valueType string
}

func (*TempTable) constraint() {}

// NewTempTable builds a temp table for column over values. Values must be
// non-empty, non-nil and share one Go type: strings map to text, narrow
// integers to int, 64-bit integers to bigint, floats to real or double
// precision, bools to boolean and time.Time to timestamp.
func NewTempTable(name string, column Column, values []any) (*TempTable, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTempTable, name)
	}

	valueType, err := sqlValueType(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	first := reflect.TypeOf(values[0])
	for i, v := range values[1:] {
		if reflect.TypeOf(v) != first {
			return nil, fmt.Errorf("%w: %s value %d is %T, expected %s", ErrMixedValueTypes, name, i+1, v, first)
		}
	}

	own := make([]any, len(values))
	copy(own, values)

	return &TempTable{
		name:      name,
		column:    column,
		values:    own,
		valueType: valueType,
	}, nil
}

func sqlValueType(v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: null", ErrUnsupportedValueType)
	}

	if _, ok := v.(time.Time); ok {
		return "timestamp", nil
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.String:
		return "text", nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return "int", nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "bigint", nil
	case reflect.Float32:
		return "real", nil
	case reflect.Float64:
		return "double precision", nil
	case reflect.Bool:
		return "boolean", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}
}

// TempTableName derives a deterministic table name from the column and the
// values, so identical constraints render identical SQL.
func TempTableName(column Column, values []any) string {
	h := sha256.New()
	h.Write([]byte(tempTableDomain))

	for _, v := range values {
		h.Write([]byte{0x00})
		fmt.Fprintf(h, "%T:%v", v, v)
	}

	return "tmp_" + column.Name() + "_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Key identifies the temp table; two temp tables with the same name are the
// same table within one query.
func (t *TempTable) Key() string { return t.name }

// Name returns the table name
func (t *TempTable) Name() string { return t.name }

// Column returns the originating column
func (t *TempTable) Column() Column { return t.column }

// ValueType returns the SQL type of the value column
func (t *TempTable) ValueType() string { return t.valueType }

// Values returns a copy of the values
func (t *TempTable) Values() []any {
	out := make([]any, len(t.values))
	copy(out, t.values)

	return out
}

// ValuesTemplate returns "(%s), (%s), ..." sized to the value count
func (t *TempTable) ValuesTemplate() string {
	return valuesTemplate(len(t.values))
}

func valuesTemplate(n int) string {
	return strings.TrimSuffix(strings.Repeat("(%s), ", n), ", ")
}

// CreateSQL returns the CREATE TEMP TABLE statement
func (t *TempTable) CreateSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (value %s)", t.name, t.valueType)
}

// InsertSQL returns a single INSERT carrying every value
func (t *TempTable) InsertSQL() (string, []any) {
	return "INSERT INTO " + t.name + " (value) VALUES " + t.ValuesTemplate(), t.Values()
}

// InsertBatches splits the insert into statements of at most size values.
// A non-positive size yields one statement.
func (t *TempTable) InsertBatches(size int) []Statement {
	if size <= 0 || size >= len(t.values) {
		sql, params := t.InsertSQL()
		return []Statement{{SQL: sql, Params: params}}
	}

	batches := make([]Statement, 0, (len(t.values)+size-1)/size)

	for start := 0; start < len(t.values); start += size {
		end := min(start+size, len(t.values))

		params := make([]any, end-start)
		copy(params, t.values[start:end])

		batches = append(batches, Statement{
			SQL:    "INSERT INTO " + t.name + " (value) VALUES " + valuesTemplate(end-start),
			Params: params,
		})
	}

	return batches
}

// DropSQL returns the DROP statement run once the query is done
func (t *TempTable) DropSQL() string {
	return "DROP TABLE IF EXISTS " + t.name
}

// JoinSQL returns a JOIN clause matching the table against the column
func (t *TempTable) JoinSQL(prefix string) (string, []any, error) {
	ref, params, err := t.column.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	return "JOIN " + t.name + " ON " + t.name + ".value=" + ref, params, nil
}

// Render returns the IN-subquery form used in place of the literal IN list
func (t *TempTable) Render(prefix string) (string, []any, error) {
	ref, params, err := t.column.Render(prefix)
	if err != nil {
		return "", nil, err
	}

	return ref + " IN (SELECT value FROM " + t.name + ")", params, nil
}

// TempTableSet collects the temp tables of one query, deduplicated by name
// and kept in registration order.
type TempTableSet struct {
	order  []*TempTable
	byName map[string]*TempTable
}

// NewTempTableSet returns an empty set
func NewTempTableSet() *TempTableSet {
	return &TempTableSet{byName: map[string]*TempTable{}}
}

// Add registers t. It reports false when a table of that name is already
// present with the same values, and fails when the values differ.
func (s *TempTableSet) Add(t *TempTable) (bool, error) {
	existing, ok := s.byName[t.Key()]
	if ok {
		if !reflect.DeepEqual(existing.values, t.values) {
			return false, fmt.Errorf("%w: %s", ErrDuplicateTempTable, t.Key())
		}

		return false, nil
	}

	s.byName[t.Key()] = t
	s.order = append(s.order, t)

	return true, nil
}

// Tables returns the registered tables in registration order
func (s *TempTableSet) Tables() []*TempTable {
	out := make([]*TempTable, len(s.order))
	copy(out, s.order)

	return out
}

// Len returns the number of registered tables
func (s *TempTableSet) Len() int { return len(s.order) }

// ExtractTempTables rewrites IN and NOT IN predicates carrying at least
// threshold values into temp-table constraints. The input tree is left
// untouched. A non-positive threshold disables the rewrite.
func ExtractTempTables(c Constraint, threshold int) (Constraint, []*TempTable, error) {
	if c == nil || threshold <= 0 {
		return c, nil, nil
	}

	set := NewTempTableSet()

	out, err := extractTempTables(c, threshold, set)
	if err != nil {
		return nil, nil, err
	}

	return out, set.Tables(), nil
}

func extractTempTables(c Constraint, threshold int, set *TempTableSet) (Constraint, error) {
	switch node := c.(type) {
	case *Predicate:
		if node.op != OpIn && node.op != OpNotIn {
			return node, nil
		}

		// nils stay inline as IS [NOT] NULL, matching the inline rendering
		values, hasNull := splitNull(node.values)
		if len(values) < threshold {
			return node, nil
		}

		table, err := NewTempTable(TempTableName(node.column, values), node.column, values)
		if err != nil {
			return nil, err
		}

		if _, err := set.Add(table); err != nil {
			return nil, err
		}

		switch {
		case node.op == OpIn && hasNull:
			return Or(table, IsNull(node.column)), nil
		case node.op == OpIn:
			return table, nil
		case hasNull:
			return And(Not(table), NotNull(node.column)), nil
		default:
			return Not(table), nil
		}
	case *composite:
		children := make([]Constraint, 0, len(node.children))

		for _, child := range node.children {
			rewritten, err := extractTempTables(child, threshold, set)
			if err != nil {
				return nil, err
			}

			children = append(children, rewritten)
		}

		return &composite{op: node.op, children: children}, nil
	case *negation:
		child, err := extractTempTables(node.child, threshold, set)
		if err != nil {
			return nil, err
		}

		return &negation{child: child}, nil
	default:
		return c, nil
	}
}
