// Package stats turns breakdown requests into warehouse queries: a model
// names the columns, the request picks breakdown levels, filters and paging.
package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsql/pkg/query"
	"github.com/ethpandaops/statsql/pkg/redshift"
)

// Request asks for aggregates grouped by one or more breakdown levels
type Request struct {
	// Breakdown lists the grouping columns, outermost level first
	Breakdown []string `yaml:"breakdown"`
	// Constraints are keyed "field" or "field__operator"
	Constraints map[string]any `yaml:"constraints"`
	// Parents restricts rows to already resolved parent groups
	Parents []map[string]any `yaml:"parents"`
	// Order lists "+alias" or "-alias" sort keys over result columns
	Order  []string `yaml:"order"`
	Offset int      `yaml:"offset"`
	Limit  int      `yaml:"limit"`
	// CacheName enables result caching for the request
	CacheName string `yaml:"cacheName"`
}

// Executor runs a prepared query
type Executor interface {
	ExecuteQuery(ctx context.Context, q *redshift.Query) (*redshift.Result, error)
}

// Service prepares and runs breakdown queries over one model
type Service struct {
	log      logrus.FieldLogger
	model    *query.Model
	renderer query.FragmentRenderer
	exec     Executor
	cfg      *Config
}

// NewService validates the model's columns against renderer and returns a
// service over it. exec may be nil when only Prepare is used.
func NewService(log logrus.FieldLogger, model *query.Model, renderer query.FragmentRenderer, exec Executor, cfg *Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		log:      log.WithFields(logrus.Fields{"component": "stats", "model": model.Name()}),
		model:    model,
		renderer: renderer,
		exec:     exec,
		cfg:      cfg,
	}, nil
}

// Model returns the model the service queries
func (s *Service) Model() *query.Model {
	return s.model
}

// Prepare renders req into an executable query without touching the
// database.
func (s *Service) Prepare(req *Request) (*redshift.Query, error) {
	if req.Offset < 0 || req.Limit < 0 {
		return nil, ErrInvalidPagination
	}

	breakdown, err := s.breakdownColumns(req.Breakdown)
	if err != nil {
		return nil, err
	}

	aggregates, err := s.model.SelectColumns(nil, query.GroupAggregate)
	if err != nil {
		return nil, err
	}

	columns := make([]query.Column, 0, len(breakdown)+len(aggregates))
	columns = append(columns, breakdown...)
	columns = append(columns, aggregates...)

	order, err := s.orderColumns(req.Order, breakdown, columns)
	if err != nil {
		return nil, err
	}

	constraints, err := s.constraints(req)
	if err != nil {
		return nil, err
	}

	constraints, tempTables, err := query.ExtractTempTables(constraints, s.cfg.TempTableThreshold)
	if err != nil {
		return nil, err
	}

	templateName := templateBreakdown
	if len(breakdown) > 1 && req.Limit > 0 {
		templateName = templateBreakdownTopRows
	}

	sql, params, err := s.renderer.GenerateSQL(templateName, map[string]any{
		"table":           s.model.Table(),
		"breakdown":       breakdown,
		"parentBreakdown": breakdown[:len(breakdown)-1],
		"aggregates":      aggregates,
		"columns":         columns,
		"constraints":     constraints,
		"order":           order,
		"offset":          req.Offset,
		"limit":           req.Limit,
		"tempTables":      tempTables,
	})
	if err != nil {
		return nil, err
	}

	return &redshift.Query{
		Name:       s.model.Name() + "." + templateName,
		SQL:        sql,
		Params:     params,
		TempTables: tempTables,
		CacheName:  req.CacheName,
	}, nil
}

// Query prepares req and executes it
func (s *Service) Query(ctx context.Context, req *Request) (*redshift.Result, error) {
	q, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"breakdown":   req.Breakdown,
		"temp_tables": len(q.TempTables),
	}).Debug("Running breakdown query")

	return s.exec.ExecuteQuery(ctx, q)
}

// QueryFresh prepares req and executes it past any cached result, storing
// the new rows for later requests.
func (s *Service) QueryFresh(ctx context.Context, req *Request) (*redshift.Result, error) {
	q, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}

	q.Refresh = true

	return s.exec.ExecuteQuery(ctx, q)
}

func (s *Service) breakdownColumns(names []string) ([]query.Column, error) {
	if len(names) == 0 {
		return nil, ErrEmptyBreakdown
	}

	seen := make(map[string]bool, len(names))
	cols := make([]query.Column, 0, len(names))

	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBreakdown, name)
		}

		seen[name] = true

		col, err := s.model.Column(name)
		if err != nil {
			return nil, err
		}

		if col.Group() != query.GroupBreakdown {
			return nil, fmt.Errorf("%w: %s is a %s column", ErrNotBreakdownColumn, name, col.Group())
		}

		cols = append(cols, col)
	}

	return cols, nil
}

// orderColumns resolves the requested order. Without one, rows follow the
// breakdown columns ascending so paging stays deterministic.
func (s *Service) orderColumns(order []string, breakdown, selected []query.Column) ([]*query.OrderColumn, error) {
	if len(order) == 0 {
		out := make([]*query.OrderColumn, 0, len(breakdown))
		for _, col := range breakdown {
			out = append(out, query.NewOrderColumn(col, false))
		}

		return out, nil
	}

	resolved, err := s.model.OrderColumns(order)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(selected))
	for _, col := range selected {
		names[col.Name()] = true
	}

	for _, col := range resolved {
		if !names[col.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotSelected, col.Name())
		}
	}

	return resolved, nil
}

func (s *Service) constraints(req *Request) (query.Constraint, error) {
	if err := s.checkConstraintKeys(req.Constraints); err != nil {
		return nil, err
	}

	for i, parent := range req.Parents {
		if err := s.checkConstraintKeys(parent); err != nil {
			return nil, fmt.Errorf("parent %d: %w", i, err)
		}
	}

	constraints, err := s.model.Constraints(req.Constraints)
	if err != nil {
		return nil, err
	}

	if len(req.Parents) == 0 {
		return constraints, nil
	}

	parents, err := s.model.ParentConstraints(req.Parents)
	if err != nil {
		return nil, err
	}

	return query.And(constraints, parents), nil
}

// checkConstraintKeys rejects keys on aggregate columns, which would land in
// WHERE as aggregate expressions. Unknown fields are left to the model.
func (s *Service) checkConstraintKeys(constraints map[string]any) error {
	for key := range constraints {
		field, _, _ := strings.Cut(key, query.OperatorSeparator)

		col, err := s.model.Column(field)
		if err != nil {
			continue
		}

		if col.Group() == query.GroupAggregate {
			return fmt.Errorf("%w: %s", ErrAggregateConstraint, key)
		}
	}

	return nil
}
