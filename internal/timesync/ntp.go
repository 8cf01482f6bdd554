package timesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/ntp"

	"smartenv/internal/clock"
)

// Source provides authoritative wall-clock time.
type Source interface {
	Now(ctx context.Context) (time.Time, error)
}

// NTPSource queries servers in order and returns the first valid answer.
type NTPSource struct {
	servers []string
	timeout time.Duration
	logger  *slog.Logger

	query func(host string, opts ntp.QueryOptions) (*ntp.Response, error)
}

func NewNTPSource(servers []string, timeout time.Duration, logger *slog.Logger) *NTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NTPSource{servers: servers, timeout: timeout, logger: logger, query: ntp.QueryWithOptions}
}

func (s *NTPSource) Now(ctx context.Context) (time.Time, error) {
	if len(s.servers) == 0 {
		return time.Time{}, errors.New("ntp: no servers configured")
	}
	var errs []error
	for _, host := range s.servers {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		resp, err := s.query(host, ntp.QueryOptions{Timeout: s.timeout})
		if err != nil {
			s.logger.Warn("ntp query failed", "server", host, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		if err := resp.Validate(); err != nil {
			s.logger.Warn("ntp response invalid", "server", host, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			continue
		}
		s.logger.Debug("ntp response", "server", host, "offset", resp.ClockOffset, "rtt", resp.RTT, "stratum", resp.Stratum)
		return time.Now().Add(resp.ClockOffset), nil
	}
	return time.Time{}, fmt.Errorf("ntp: all servers failed: %w", errors.Join(errs...))
}

// Syncer periodically sets a clock from a Source.
type Syncer struct {
	source Source
	clock  clock.Clock
	logger *slog.Logger
}

func NewSyncer(source Source, c clock.Clock, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, clock: c, logger: logger}
}

func (s *Syncer) Sync(ctx context.Context) error {
	t, err := s.source.Now(ctx)
	if err != nil {
		return err
	}
	if err := s.clock.Set(t); err != nil {
		return fmt.Errorf("set clock: %w", err)
	}
	s.logger.Info("clock synchronized", "time", t.UTC().Format(time.RFC3339))
	return nil
}

// Run syncs immediately and then every interval until ctx is done. Failures
// are logged and retried on the next period.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	sync := func() {
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("clock sync failed", "err", err)
		}
	}
	sync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sync()
		}
	}
}
