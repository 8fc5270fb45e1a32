// Package warehouse executes analytical queries against the Snowflake warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/0xkofi/bundlebear-api/internal/config"
	"github.com/0xkofi/bundlebear-api/internal/observability"
)

// ExecutionError wraps a warehouse failure together with the query text for
// operator diagnostics. The query text is logged, never returned to clients.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("warehouse query failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

type Interface interface {
	Query(ctx context.Context, label, query string) ([]Row, error)
}

type Executor struct {
	logger  *slog.Logger
	timeout time.Duration
	open    func() (*sql.DB, error) // for tests
}

func New(logger *slog.Logger, cfg config.SnowflakeCfg, timeout time.Duration) (*Executor, error) {
	dsn, err := sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Warehouse: cfg.Warehouse,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}
	return &Executor{
		logger:  logger,
		timeout: timeout,
		open:    func() (*sql.DB, error) { return sql.Open("snowflake", dsn) },
	}, nil
}

// Query runs one query over a fresh connection and returns the full row set.
// The connection is closed on every exit path. label is a low-cardinality
// name for metrics; the query text only appears in logs and ExecutionError.
func (e *Executor) Query(ctx context.Context, label, query string) ([]Row, error) {
	start := time.Now()
	rows, err := e.query(ctx, query)
	observability.ObserveWarehouseQuery(label, err, time.Since(start).Seconds())
	if err != nil {
		e.logger.ErrorContext(ctx, "warehouse query failed",
			"query_label", label,
			"query", query,
			"err", err)
		return nil, &ExecutionError{Query: query, Err: err}
	}
	return rows, nil
}

func (e *Executor) query(ctx context.Context, query string) ([]Row, error) {
	db, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rs, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		out = append(out, NewRow(cols, vals))
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize maps driver-specific scan types onto JSON-friendly values.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
