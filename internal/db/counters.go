package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

const rebootCounter = "reboots"

// Counters persists named monotonically increasing counters.
type Counters struct {
	db *sql.DB
}

func NewCounters(db *sql.DB) *Counters {
	return &Counters{db: db}
}

// Increment adds one to the named counter and returns the new value.
// Missing counters start at 1.
func (c *Counters) Increment(ctx context.Context, name string) (int64, error) {
	var v int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO node_counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET
			value = value + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		RETURNING value`, name).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", name, err)
	}
	return v, nil
}

// Get returns the counter value, zero if it was never incremented.
func (c *Counters) Get(ctx context.Context, name string) (int64, error) {
	var v int64
	err := c.db.QueryRowContext(ctx, `SELECT value FROM node_counters WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	return v, nil
}

// RecordBoot bumps the reboot counter. The first boot after the state file
// is created reports 1.
func (c *Counters) RecordBoot(ctx context.Context) (int32, error) {
	v, err := c.Increment(ctx, rebootCounter)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		v = math.MaxInt32
	}
	return int32(v), nil
}
