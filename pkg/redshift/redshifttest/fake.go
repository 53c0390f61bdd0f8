// Package redshifttest provides an in-memory connection pool for testing code
// that executes queries through redshift.Client.
package redshifttest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ethpandaops/statsql/pkg/redshift"
)

// ErrScanMismatch is returned by Scan when destinations do not fit the row
var ErrScanMismatch = errors.New("scan destination mismatch")

// Call is one recorded statement
type Call struct {
	SQL  string
	Args []any
}

// FakePool serves the same canned rows to every query and records every
// statement it receives.
type FakePool struct {
	Columns []string
	Rows    [][]any

	AcquireErr error
	QueryErr   error
	RowsErr    error
	// ExecErr, when set, is consulted for every Exec statement
	ExecErr func(sql string) error

	mu       sync.Mutex
	acquired int
	released int
	closed   bool
	execs    []Call
	queries  []Call
}

// NewFakePool returns a pool answering queries with columns and rows
func NewFakePool(columns []string, rows ...[]any) *FakePool {
	return &FakePool{Columns: columns, Rows: rows}
}

// Acquire hands out a connection
func (p *FakePool) Acquire(_ context.Context) (redshift.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}

	p.acquired++

	return &fakeConn{pool: p}, nil
}

// Close marks the pool closed
func (p *FakePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
}

// Acquired returns how many connections were handed out
func (p *FakePool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.acquired
}

// Released returns how many connections were given back
func (p *FakePool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.released
}

// Execs returns the recorded Exec statements
func (p *FakePool) Execs() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Call(nil), p.execs...)
}

// Queries returns the recorded Query statements
func (p *FakePool) Queries() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Call(nil), p.queries...)
}

type fakeConn struct {
	pool     *FakePool
	released bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p := c.pool

	p.mu.Lock()
	p.execs = append(p.execs, Call{SQL: sql, Args: args})
	execErr := p.ExecErr
	p.mu.Unlock()

	if execErr != nil {
		if err := execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}

	return pgconn.NewCommandTag("OK"), nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p := c.pool

	p.mu.Lock()
	defer p.mu.Unlock()

	p.queries = append(p.queries, Call{SQL: sql, Args: args})

	if p.QueryErr != nil {
		return nil, p.QueryErr
	}

	return NewRows(p.Columns, p.Rows, p.RowsErr), nil
}

func (c *fakeConn) Release() {
	if c.released {
		return
	}

	c.released = true

	c.pool.mu.Lock()
	c.pool.released++
	c.pool.mu.Unlock()
}

// Rows is an in-memory pgx.Rows
type Rows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	err    error
	pos    int
	closed bool
}

// NewRows returns rows over values; err is reported once iteration ends
func NewRows(columns []string, values [][]any, err error) *Rows {
	fields := make([]pgconn.FieldDescription, len(columns))
	for i, name := range columns {
		fields[i] = pgconn.FieldDescription{Name: name}
	}

	return &Rows{fields: fields, rows: values, err: err}
}

// Close closes the rows
func (r *Rows) Close() { r.closed = true }

// Err returns the configured error once iteration is finished
func (r *Rows) Err() error {
	if r.closed || r.pos > len(r.rows) {
		return r.err
	}

	return nil
}

// CommandTag returns a SELECT tag
func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.rows)))
}

// FieldDescriptions returns one description per column
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }

// Next advances to the next row
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}

	r.pos++
	if r.pos > len(r.rows) {
		r.closed = true
		return false
	}

	return true
}

// Scan assigns the current row to dest
func (r *Rows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if scanner, ok := dest[0].(pgx.RowScanner); ok {
			return scanner.ScanRow(r)
		}
	}

	row := r.current()
	if len(dest) != len(row) {
		return fmt.Errorf("%w: %d destinations for %d values", ErrScanMismatch, len(dest), len(row))
	}

	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("%w: destination %d is not a pointer", ErrScanMismatch, i)
		}

		if row[i] == nil {
			target.Elem().SetZero()
			continue
		}

		value := reflect.ValueOf(row[i])
		if !value.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("%w: cannot assign %T to %s", ErrScanMismatch, row[i], target.Elem().Type())
		}

		target.Elem().Set(value)
	}

	return nil
}

// Values returns the current row
func (r *Rows) Values() ([]any, error) {
	return append([]any(nil), r.current()...), nil
}

// RawValues is not supported by the fake
func (r *Rows) RawValues() [][]byte { return nil }

// Conn is not backed by a real connection
func (r *Rows) Conn() *pgx.Conn { return nil }

func (r *Rows) current() []any {
	if r.pos == 0 || r.pos > len(r.rows) {
		return nil
	}

	return r.rows[r.pos-1]
}
