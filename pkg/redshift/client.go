// Package redshift executes generated SQL against a Redshift-compatible
// warehouse through a pgx connection pool, with an optional result cache.
package redshift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsql/pkg/cache"
	"github.com/ethpandaops/statsql/pkg/observability"
	"github.com/ethpandaops/statsql/pkg/query"
)

// dropTimeout bounds temp-table cleanup, which runs even after the query
// context is done.
const dropTimeout = 30 * time.Second

// Query is one execution request: SQL with %s placeholders, its params, the
// temp tables it reads from and an optional cache name.
type Query struct {
	Name       string
	SQL        string
	Params     []any
	TempTables []*query.TempTable
	// CacheName enables the result cache when non-empty
	CacheName string
	// Refresh skips the cache lookup but still stores the fresh result
	Refresh bool
}

// Conn is a single pooled connection
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Release()
}

// Pool hands out connections
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// ResultStore persists encoded results by fingerprint
type ResultStore interface {
	Get(ctx context.Context, fingerprint string) ([]byte, bool, error)
	Set(ctx context.Context, fingerprint string, payload []byte) error
}

type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Connect opens a pgx pool against cfg.URL
func Connect(ctx context.Context, log logrus.FieldLogger, cfg *Config) (Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.SetDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pool: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host":      poolConfig.ConnConfig.Host,
		"database":  poolConfig.ConnConfig.Database,
		"max_conns": poolConfig.MaxConns,
	}).Info("Connected to warehouse")

	return pgxPool{Pool: pool}, nil
}

// Client runs queries on the pool and consults the result store
type Client struct {
	log   logrus.FieldLogger
	pool  Pool
	store ResultStore
	cfg   *Config
}

// NewClient creates a client. store may be nil to disable caching.
func NewClient(log logrus.FieldLogger, pool Pool, store ResultStore, cfg *Config) *Client {
	cfg.SetDefaults()

	return &Client{
		log:   log.WithField("component", "redshift"),
		pool:  pool,
		store: store,
		cfg:   cfg,
	}
}

// ExecuteQuery runs q and returns its rows. When q carries a cache name the
// result is looked up by fingerprint first and no database work happens on a
// hit; on a miss the fresh result is stored. Cache failures are logged and
// never fail the query. Database errors are returned wrapped and not retried.
func (c *Client) ExecuteQuery(ctx context.Context, q *Query) (*Result, error) {
	if q.SQL == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptySQL, q.Name)
	}

	log := c.log.WithFields(logrus.Fields{
		"query":    q.Name,
		"query_id": uuid.New().String(),
	})

	var fingerprint string

	if c.store != nil && q.CacheName != "" {
		key, err := cache.Fingerprint(q.CacheName, q.SQL, q.Params)
		if err != nil {
			return nil, err
		}

		fingerprint = key

		if !q.Refresh {
			if result := c.lookup(ctx, log, q.CacheName, fingerprint); result != nil {
				return result, nil
			}
		}

		observability.RecordCacheMiss(q.CacheName)
	}

	start := time.Now()

	result, err := c.execute(ctx, q)
	duration := time.Since(start)

	if err != nil {
		observability.RecordQuery(q.Name, observability.StatusError, duration.Seconds())
		log.WithError(err).WithField("duration", duration).Error("Query failed")

		return nil, err
	}

	observability.RecordQuery(q.Name, observability.StatusSuccess, duration.Seconds())
	observability.RecordRows(q.Name, result.Len())

	log.WithFields(logrus.Fields{
		"duration": duration,
		"rows":     result.Len(),
		"cache":    q.CacheName,
	}).Debug("Query executed")

	if fingerprint == "" {
		return result, nil
	}

	return c.save(ctx, log, fingerprint, result), nil
}

func (c *Client) lookup(ctx context.Context, log logrus.FieldLogger, cacheName, fingerprint string) *Result {
	payload, ok, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		observability.RecordError("cache", "get")
		log.WithError(err).Warn("Failed to read result cache")

		return nil
	}

	if !ok {
		return nil
	}

	result, err := decodeResult(payload)
	if err != nil {
		observability.RecordError("cache", "decode")
		log.WithError(err).Warn("Discarding unreadable cached result")

		return nil
	}

	result.Cached = true

	observability.RecordCacheHit(cacheName)
	log.WithFields(logrus.Fields{
		"rows":  result.Len(),
		"cache": cacheName,
	}).Debug("Served query from cache")

	return result
}

// save stores the result and hands back the same decoded form a cache hit
// would produce, so callers see one row shape either way.
func (c *Client) save(ctx context.Context, log logrus.FieldLogger, fingerprint string, result *Result) *Result {
	payload, err := encodeResult(result)
	if err != nil {
		observability.RecordError("cache", "encode")
		log.WithError(err).Warn("Result not cacheable")

		return result
	}

	if err := c.store.Set(ctx, fingerprint, payload); err != nil {
		observability.RecordError("cache", "set")
		log.WithError(err).Warn("Failed to write result cache")
	}

	decoded, err := decodeResult(payload)
	if err != nil {
		return result
	}

	return decoded
}

func (c *Client) execute(ctx context.Context, q *Query) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.getTimeout(ctx))
	defer cancel()

	sql, err := BindParams(q.SQL, q.Params)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	created := make([]*query.TempTable, 0, len(q.TempTables))

	defer func() {
		if err := c.dropTempTables(ctx, conn, created); err != nil {
			observability.RecordError("redshift", "drop_temp_table")
			c.log.WithError(err).WithField("query", q.Name).Warn("Failed to drop temp tables")
		}
	}()

	for _, table := range q.TempTables {
		created = append(created, table)

		if err := c.createTempTable(ctx, conn, table); err != nil {
			return nil, err
		}
	}

	observability.RecordTempTables(q.Name, len(created))

	rows, err := conn.Query(ctx, sql, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", q.Name, err)
	}

	columns := fieldNames(rows.FieldDescriptions())

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("query %s: failed to read rows: %w", q.Name, err)
	}

	if records == nil {
		records = []map[string]any{}
	}

	return &Result{Columns: columns, Rows: records}, nil
}

// createTempTable drops any leftover of the same name on this session before
// creating and filling the table.
func (c *Client) createTempTable(ctx context.Context, conn Conn, table *query.TempTable) error {
	if _, err := conn.Exec(ctx, table.DropSQL()); err != nil {
		return fmt.Errorf("failed to reset temp table %s: %w", table.Name(), err)
	}

	if _, err := conn.Exec(ctx, table.CreateSQL()); err != nil {
		return fmt.Errorf("failed to create temp table %s: %w", table.Name(), err)
	}

	for _, stmt := range table.InsertBatches(c.cfg.InsertBatchSize) {
		sql, err := BindParams(stmt.SQL, stmt.Params)
		if err != nil {
			return fmt.Errorf("temp table %s: %w", table.Name(), err)
		}

		if _, err := conn.Exec(ctx, sql, stmt.Params...); err != nil {
			return fmt.Errorf("failed to fill temp table %s: %w", table.Name(), err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"table":  table.Name(),
		"values": len(table.Values()),
	}).Debug("Created temp table")

	return nil
}

func (c *Client) dropTempTables(ctx context.Context, conn Conn, tables []*query.TempTable) error {
	if len(tables) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dropTimeout)
	defer cancel()

	var errs []error

	for _, table := range tables {
		if _, err := conn.Exec(ctx, table.DropSQL()); err != nil {
			errs = append(errs, fmt.Errorf("failed to drop temp table %s: %w", table.Name(), err))
		}
	}

	return errors.Join(errs...)
}

func (c *Client) getTimeout(ctx context.Context) time.Duration {
	// Check if context already has a deadline
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}

	return c.cfg.QueryTimeout
}

func fieldNames(fields []pgconn.FieldDescription) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	return names
}
