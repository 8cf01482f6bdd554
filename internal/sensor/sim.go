package sensor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SimOptions tunes the simulated drivers.
type SimOptions struct {
	Rand *rand.Rand
	// MotionMin and MotionMax bound the random delay between motion edges.
	MotionMin time.Duration
	MotionMax time.Duration
}

// NewSim returns drivers that produce bounded random walks and random
// motion edges, for hosts without the sensor hardware.
func NewSim(opts SimOptions) *Drivers {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if opts.MotionMin <= 0 {
		opts.MotionMin = 5 * time.Second
	}
	if opts.MotionMax < opts.MotionMin {
		opts.MotionMax = 3 * opts.MotionMin
	}
	r := &lockedRand{r: opts.Rand}
	return &Drivers{
		Climate: &simClimate{r: r, temperature: 21, humidity: 45},
		Pot:     &simPot{r: r, raw: 1650, full: 3300},
		Motion:  &simMotion{r: r, min: opts.MotionMin, max: opts.MotionMax},
	}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// walk moves v by up to ±step and keeps it within [lo, hi].
func (l *lockedRand) walk(v, step, lo, hi float64) float64 {
	v += (l.float64()*2 - 1) * step
	return min(max(v, lo), hi)
}

type simClimate struct {
	r           *lockedRand
	mu          sync.Mutex
	temperature float64
	humidity    float64
}

func (s *simClimate) ReadClimate(_ context.Context) (float32, float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = s.r.walk(s.temperature, 0.8, -5, 45)
	s.humidity = s.r.walk(s.humidity, 3, 0, 100)
	return float32(s.temperature), float32(s.humidity), nil
}

type simPot struct {
	r    *lockedRand
	mu   sync.Mutex
	raw  float64
	full int32
}

func (s *simPot) ReadRaw(_ context.Context) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = s.r.walk(s.raw, 300, 0, float64(s.full))
	return int32(s.raw), nil
}

func (s *simPot) FullScale() int32 { return s.full }

type simMotion struct {
	r        *lockedRand
	min, max time.Duration
}

func (s *simMotion) WaitForMotion(ctx context.Context) error {
	wait := s.min + time.Duration(s.r.float64()*float64(s.max-s.min))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
