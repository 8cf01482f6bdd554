// Package delta implements the send-on-delta batching policy of the sensor
// role.
package delta

import (
	"context"
	"log/slog"
	"math"
	"time"

	"smartenv/internal/clock"
	"smartenv/internal/protocol"
	"smartenv/internal/sensor"
)

// Thresholds are the per-channel absolute deltas that trigger a reading.
// A channel triggers when |current - baseline| >= its threshold.
type Thresholds struct {
	Temperature float32
	Humidity    float32
	Percentage  int32
}

var DefaultThresholds = Thresholds{Temperature: 0.5, Humidity: 2.0, Percentage: 5}

// InitialBaseline guarantees the first primed tick triggers on every channel.
const InitialBaseline = -1000

// Crossed reports which channels met their threshold.
type Crossed struct {
	Temperature bool
	Humidity    bool
	Percentage  bool
}

func (c Crossed) Any() bool { return c.Temperature || c.Humidity || c.Percentage }

// Compare checks each channel independently. NaN never crosses.
func Compare(cur, baseline sensor.Reading, th Thresholds) Crossed {
	return Crossed{
		Temperature: math.Abs(float64(cur.Temperature)-float64(baseline.Temperature)) >= float64(th.Temperature),
		Humidity:    math.Abs(float64(cur.Humidity)-float64(baseline.Humidity)) >= float64(th.Humidity),
		Percentage:  absInt64(int64(cur.Percentage)-int64(baseline.Percentage)) >= int64(th.Percentage),
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FlushFunc receives a full batch. The slice is only valid during the call.
type FlushFunc func(ctx context.Context, batch []protocol.DataReading)

// Evaluator owns the batch buffer and the per-channel baselines. It is not
// safe for concurrent use; one goroutine runs it.
type Evaluator struct {
	state      *sensor.State
	clock      clock.Clock
	thresholds Thresholds
	flush      FlushFunc
	logger     *slog.Logger

	baseline sensor.Reading
	buf      [protocol.BatchCapacity]protocol.DataReading
	n        int
}

type Options struct {
	State      *sensor.State
	Clock      clock.Clock
	Thresholds Thresholds
	Flush      FlushFunc
	Logger     *slog.Logger
}

func NewEvaluator(opts Options) *Evaluator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds
	}
	if opts.Flush == nil {
		opts.Flush = func(context.Context, []protocol.DataReading) {}
	}
	return &Evaluator{
		state:      opts.State,
		clock:      opts.Clock,
		thresholds: opts.Thresholds,
		flush:      opts.Flush,
		logger:     opts.Logger,
		baseline: sensor.Reading{
			Temperature: InitialBaseline,
			Humidity:    InitialBaseline,
			Percentage:  InitialBaseline,
		},
	}
}

// Tick runs one evaluation and reports whether a reading was appended.
// Ticks before every channel has been sampled once are skipped.
func (e *Evaluator) Tick(ctx context.Context) bool {
	cur, primed := e.state.Current()
	if !primed {
		return false
	}

	crossed := Compare(cur, e.baseline, e.thresholds)
	if !crossed.Any() {
		return false
	}

	r := protocol.DataReading{
		Temperature: cur.Temperature,
		Humidity:    cur.Humidity,
		Percentage:  cur.Percentage,
		Timestamp:   clock.Epoch(e.clock),
	}
	e.buf[e.n] = r
	e.n++

	if crossed.Temperature {
		e.baseline.Temperature = cur.Temperature
	}
	if crossed.Humidity {
		e.baseline.Humidity = cur.Humidity
	}
	if crossed.Percentage {
		e.baseline.Percentage = cur.Percentage
	}

	e.logger.Debug("reading buffered",
		"temperature", r.Temperature,
		"humidity", r.Humidity,
		"percentage", r.Percentage,
		"timestamp", r.Timestamp,
		"pending", e.n,
	)

	if e.n >= protocol.BatchCapacity {
		e.flush(ctx, e.buf[:])
		e.n = 0
	}
	return true
}

// Run ticks every interval until ctx is done.
func (e *Evaluator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Pending is the number of buffered readings.
func (e *Evaluator) Pending() int { return e.n }

// Baseline returns the last value sent per channel.
func (e *Evaluator) Baseline() sensor.Reading { return e.baseline }
