// Package dummy simulates a fleet of nodes publishing straight to the broker,
// for exercising broker consumers without hardware.
package dummy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Publisher publishes v as JSON.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Sample is the published payload.
type Sample struct {
	Value     float64 `json:"valor"`
	Timestamp float64 `json:"timestamp"`
}

type Options struct {
	NetworkID        string
	Nodes            int
	ClimateInterval  time.Duration
	MinEventInterval time.Duration
	MaxEventInterval time.Duration
	Rand             *rand.Rand
	Now              func() time.Time
}

type Fleet struct {
	pub    Publisher
	opts   Options
	logger *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewFleet(pub Publisher, opts Options, logger *slog.Logger) *Fleet {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xd0d0))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fleet{pub: pub, opts: opts, logger: logger, rnd: opts.Rand}
}

// Topic is /{network}/{kind}/node_{i}.
func (f *Fleet) Topic(node int, kind string) string {
	return fmt.Sprintf("/%s/%s/node_%d", f.opts.NetworkID, kind, node)
}

func (f *Fleet) uniform(lo, hi float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo + f.rnd.Float64()*(hi-lo)
}

func (f *Fleet) eventDelay() time.Duration {
	lo, hi := f.opts.MinEventInterval, f.opts.MaxEventInterval
	return lo + time.Duration(f.uniform(0, 1)*float64(hi-lo))
}

func (f *Fleet) publish(node int, kind string, value float64) {
	now := f.opts.Now()
	s := Sample{Value: value, Timestamp: float64(now.UnixNano()) / 1e9}
	topic := f.Topic(node, kind)
	if err := f.pub.PublishJSON(topic, s); err != nil {
		f.logger.Warn("publish failed", "topic", topic, "err", err)
		return
	}
	f.logger.Debug("published", "topic", topic, "value", value)
}

// Run starts three tasks per node and blocks until ctx is done.
func (f *Fleet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < f.opts.Nodes; i++ {
		g.Go(func() error { return f.climate(ctx, i) })
		g.Go(func() error { return f.events(ctx, i, "presence", func() float64 { return 1 }) })
		g.Go(func() error { return f.events(ctx, i, "potentiometer", func() float64 { return f.uniform(0, 100) }) })
	}
	f.logger.Info("dummy fleet running", "nodes", f.opts.Nodes, "network", f.opts.NetworkID)
	return g.Wait()
}

func (f *Fleet) climate(ctx context.Context, node int) error {
	ticker := time.NewTicker(f.opts.ClimateInterval)
	defer ticker.Stop()
	for {
		f.publish(node, "temperature", f.uniform(-5, 45))
		f.publish(node, "humidity", f.uniform(0, 100))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// events publishes value() after a random delay, repeatedly.
func (f *Fleet) events(ctx context.Context, node int, kind string, value func() float64) error {
	for {
		t := time.NewTimer(f.eventDelay())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
			f.publish(node, kind, value())
		}
	}
}
