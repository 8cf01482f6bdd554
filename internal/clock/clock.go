// Package clock holds the node's notion of wall-clock time.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock is read by every task that timestamps a frame and set by time sync.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// Offset keeps a correction relative to the host clock instead of touching it.
type Offset struct {
	mu       sync.RWMutex
	base     func() time.Time
	offset   time.Duration
	lastSync time.Time
}

func NewOffset() *Offset {
	return &Offset{base: time.Now}
}

// NewOffsetFrom uses base as the underlying time source; tests pass a fake.
func NewOffsetFrom(base func() time.Time) *Offset {
	return &Offset{base: base}
}

func (c *Offset) Now() time.Time {
	c.mu.RLock()
	off := c.offset
	c.mu.RUnlock()
	return c.base().Add(off).UTC()
}

func (c *Offset) Set(t time.Time) error {
	now := c.base()
	c.mu.Lock()
	c.offset = t.Sub(now)
	c.lastSync = now
	c.mu.Unlock()
	return nil
}

// Synced reports whether Set has been called. Until then the host time is
// not trusted and the clock counts as unset.
func (c *Offset) Synced() bool {
	return !c.LastSync().IsZero()
}

// LastSync returns the host time of the last Set, zero if never set.
func (c *Offset) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

// New builds the clock for mode "offset" or "system".
func New(mode string) (Clock, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "offset":
		return NewOffset(), nil
	case "system":
		return System{}, nil
	default:
		return nil, fmt.Errorf("invalid clock mode %q (allowed: offset, system)", mode)
	}
}

// validAfter is the earliest time a node treats as set; before it the clock
// is assumed to be at its power-on default.
var validAfter = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

// Stamp returns c.Now(), or the zero time while c is unset.
func Stamp(c Clock) time.Time {
	if s, ok := c.(interface{ Synced() bool }); ok && !s.Synced() {
		return time.Time{}
	}
	return c.Now()
}

// Epoch returns c.Now() as Unix seconds, or 0 while the clock is unset.
func Epoch(c Clock) int64 {
	return EpochAt(Stamp(c))
}

// EpochAt is Epoch for a time already read from a Clock.
func EpochAt(t time.Time) int64 {
	if t.Before(validAfter) {
		return 0
	}
	return t.Unix()
}
