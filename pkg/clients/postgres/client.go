// Package postgres provides the PostgreSQL client used by the SproutLearn
// identity, profile, and consent repositories. It wraps a pgx v5 connection
// pool with OpenTelemetry tracing and structured error classification.
//
// # Connection Management
//
// The client uses pgxpool for connection pooling. Transient connection
// failures are handled by the pool itself; repositories do not retry.
//
// # Testing
//
// [NewFromPool] accepts any [Pool] implementation, which pgxmock satisfies,
// so repository tests run without a real database:
//
//	mock, _ := pgxmock.NewPool()
//	client := postgres.NewFromPool(mock, "sproutlearn_test")
//
// # Unique-Violation Detection
//
// [IsUniqueViolation] exposes PostgreSQL error 23505. The account resolver
// depends on it: concurrent first-requests race on the accounts insert, the
// loser sees the unique violation, and recovers by re-reading the winner's
// row.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/clients/postgres"

// uniqueViolationCode is the PostgreSQL error code for a unique constraint
// violation.
const uniqueViolationCode = "23505"

// maxSQLTruncateLen caps SQL statements recorded in trace spans so that
// bound values and PII never leak into telemetry.
const maxSQLTruncateLen = 100

// Pool defines the connection pool operations the client depends on. It is
// satisfied by [*pgxpool.Pool] and by pgxmock pools, enabling dependency
// injection via [NewFromPool] for tests.
type Pool interface {
	// Query executes a SQL query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a SQL query that returns at most one row.
	// Errors are deferred until the returned pgx.Row is scanned.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Exec executes a SQL statement that does not return rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Begin starts a new database transaction.
	Begin(ctx context.Context) (pgx.Tx, error)

	// Ping verifies the connection to the database is alive.
	Ping(ctx context.Context) error

	// Close releases all pool resources.
	Close()
}

// Compile-time check that *pgxpool.Pool satisfies Pool.
var _ Pool = (*pgxpool.Pool)(nil)

// Client is a PostgreSQL client with connection pooling, tracing, and
// typed error classification. It is safe for concurrent use; create one
// per database and share it.
type Client struct {
	pool         Pool
	tracer       trace.Tracer
	databaseName string
}

// NewClient creates a Client by connecting with the given configuration.
// Connectivity is verified with a ping before the client is returned; the
// caller must Close the client when done.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeConfiguration,
			"postgres: invalid configuration")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeConfiguration,
			"postgres: failed to parse connection string")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailable,
			"postgres: failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailable,
			"postgres: failed to connect to database")
	}

	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.Database,
	}, nil
}

// NewFromPool creates a Client over an existing [Pool]. Intended for tests
// with pgxmock pools; databaseName is used only for span attributes.
func NewFromPool(pool Pool, databaseName string) *Client {
	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: databaseName,
	}
}

// Query executes a SQL query that returns rows, with tracing. The returned
// rows must be closed by the caller.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, span := c.startSpan(ctx, "Query", sql)

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		finishSpan(span, err)
		return nil, wrapError(err, "postgres: query failed")
	}
	finishSpan(span, nil)
	return rows, nil
}

// QueryRow executes a SQL query that returns at most one row. Errors are
// deferred to Scan per pgx semantics, so the span covers only execution.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, span := c.startSpan(ctx, "QueryRow", sql)
	defer span.End()

	return c.pool.QueryRow(ctx, sql, args...)
}

// Exec executes a statement that does not return rows, with tracing.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, span := c.startSpan(ctx, "Exec", sql)

	tag, err := c.pool.Exec(ctx, sql, args...)
	finishSpan(span, err)
	if err != nil {
		return tag, wrapError(err, "postgres: exec failed")
	}
	return tag, nil
}

// Begin starts a transaction with tracing. Callers must commit or roll
// back; defer tx.Rollback(ctx) immediately after Begin is the recommended
// pattern (rollback after commit is a no-op in pgx).
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := c.startSpan(ctx, "Begin", "BEGIN")

	tx, err := c.pool.Begin(ctx)
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "postgres: begin transaction failed")
	}
	return tx, nil
}

// Health pings the database, for readiness probes.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "SELECT 1")

	err := c.pool.Ping(ctx)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailable,
			"postgres: health check failed")
	}
	return nil
}

// Close releases all connection pool resources. Safe to call multiple times.
func (c *Client) Close() {
	c.pool.Close()
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (error code 23505). The account resolver treats this as the
// signal that a concurrent request won the insert race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsNoRows reports whether err indicates that a query matched no rows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// startSpan creates a span with standard database semantic attributes.
func (c *Client) startSpan(ctx context.Context, operationName, sql string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "postgres."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", c.databaseName),
		attribute.String("db.statement", truncateSQL(sql)),
	)
	return ctx, span
}

// finishSpan records the error (if any) and ends the span.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError classifies a database error as a timeout or a storage failure.
func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sserr.Wrap(err, sserr.CodeStorageTimeout, message)
	}
	return sserr.Wrap(err, sserr.CodeStorage, message)
}

// truncateSQL shortens a SQL statement for safe inclusion in trace spans.
func truncateSQL(sql string) string {
	if len(sql) <= maxSQLTruncateLen {
		return sql
	}
	return sql[:maxSQLTruncateLen] + "..."
}
