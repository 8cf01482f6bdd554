package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// tracingConnector opens sqlite3 connections that log Exec and Query calls
// at debug level.
type tracingConnector struct {
	dsn    string
	logger *slog.Logger
	drv    *sqlite3.SQLiteDriver
}

func newTracingConnector(dsn string, logger *slog.Logger) *tracingConnector {
	return &tracingConnector{dsn: dsn, logger: logger, drv: &sqlite3.SQLiteDriver{}}
}

func (c *tracingConnector) Connect(_ context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	sc, ok := conn.(*sqlite3.SQLiteConn)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected sqlite3 connection type %T", conn)
	}
	return &tracingConn{SQLiteConn: sc, logger: c.logger}, nil
}

func (c *tracingConnector) Driver() driver.Driver { return c.drv }

type tracingConn struct {
	*sqlite3.SQLiteConn
	logger *slog.Logger
}

func (c *tracingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.trace(ctx, "exec", query, args)
	return c.SQLiteConn.ExecContext(ctx, query, args)
}

func (c *tracingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.trace(ctx, "query", query, args)
	return c.SQLiteConn.QueryContext(ctx, query, args)
}

func (c *tracingConn) trace(ctx context.Context, op, query string, args []driver.NamedValue) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	vals := make([]string, len(args))
	for i, a := range args {
		vals[i] = formatArg(a.Value)
	}
	c.logger.DebugContext(ctx, "sql", "op", op, "sql", query, "args", vals)
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
