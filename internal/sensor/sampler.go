package sensor

import (
	"context"
	"log/slog"
	"math"
	"time"
)

var nan32 = float32(math.NaN())

// Sampler polls the drivers into a State.
type Sampler struct {
	drivers *Drivers
	state   *State
	logger  *slog.Logger
}

func NewSampler(d *Drivers, s *State, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{drivers: d, state: s, logger: logger}
}

// SampleClimate reads once. A failed read stores NaN for both channels.
func (s *Sampler) SampleClimate(ctx context.Context) {
	t, h, err := s.drivers.Climate.ReadClimate(ctx)
	if err != nil {
		s.logger.Warn("climate read failed", "err", err)
		t, h = nan32, nan32
	}
	s.state.SetClimate(t, h)
	s.logger.Debug("climate sampled", "temperature", t, "humidity", h)
}

// SamplePotentiometer reads once. A failed read keeps the previous value.
func (s *Sampler) SamplePotentiometer(ctx context.Context) {
	raw, err := s.drivers.Pot.ReadRaw(ctx)
	if err != nil {
		s.logger.Warn("potentiometer read failed", "err", err)
		return
	}
	p := Percentage(raw, s.drivers.Pot.FullScale())
	s.state.SetPercentage(p)
	s.logger.Debug("potentiometer sampled", "raw", raw, "percentage", p)
}

// RunClimate samples immediately and then every interval until ctx is done.
func (s *Sampler) RunClimate(ctx context.Context, interval time.Duration) error {
	return every(ctx, interval, s.SampleClimate)
}

func (s *Sampler) RunPotentiometer(ctx context.Context, interval time.Duration) error {
	return every(ctx, interval, s.SamplePotentiometer)
}

// WatchMotion forwards motion edges to edges, stamped with now() at the
// edge. At most one edge is pending; later edges are coalesced into it.
func (s *Sampler) WatchMotion(ctx context.Context, now func() time.Time, edges chan<- time.Time) error {
	for {
		if err := s.drivers.Motion.WaitForMotion(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("motion sensor failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		at := now()
		select {
		case edges <- at:
			s.logger.Debug("motion edge", "at", at)
		default:
			s.logger.Debug("motion edge coalesced", "at", at)
		}
	}
}

func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
