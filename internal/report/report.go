// Package report sends the sensor role's unbatched frames: presence
// notifications and the status heartbeat.
package report

import (
	"context"
	"log/slog"
	"time"

	"smartenv/internal/clock"
	"smartenv/internal/protocol"
)

// Sender is the link send primitive.
type Sender interface {
	Send(ctx context.Context, to protocol.Addr, frame []byte) error
}

// Presence turns motion edges into PresenceNotification frames.
type Presence struct {
	link    Sender
	gateway protocol.Addr
	codec   protocol.Codec
	logger  *slog.Logger
}

func NewPresence(link Sender, gateway protocol.Addr, codec protocol.Codec, logger *slog.Logger) *Presence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presence{link: link, gateway: gateway, codec: codec, logger: logger}
}

// Report sends one notification stamped with the edge time.
func (p *Presence) Report(ctx context.Context, at time.Time) {
	n := protocol.PresenceNotification{Present: true, Timestamp: clock.EpochAt(at)}
	if err := p.link.Send(ctx, p.gateway, p.codec.EncodePresence(n)); err != nil {
		p.logger.Debug("presence send failed", "err", err)
		return
	}
	p.logger.Info("presence reported", "timestamp", n.Timestamp)
}

// Run reports every edge received on edges until ctx is done.
func (p *Presence) Run(ctx context.Context, edges <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case at := <-edges:
			p.Report(ctx, at)
		}
	}
}

// Status sends the periodic NodeStatus heartbeat.
type Status struct {
	link    Sender
	gateway protocol.Addr
	codec   protocol.Codec
	logger  *slog.Logger

	reboots int32
	started time.Time
	now     func() time.Time
}

type StatusOptions struct {
	Link        Sender
	Gateway     protocol.Addr
	Codec       protocol.Codec
	RebootCount int32
	// Now is the monotonic host clock used for uptime; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func NewStatus(opts StatusOptions) *Status {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Status{
		link:    opts.Link,
		gateway: opts.Gateway,
		codec:   opts.Codec,
		logger:  opts.Logger,
		reboots: opts.RebootCount,
		started: opts.Now(),
		now:     opts.Now,
	}
}

// Snapshot returns the current status. Uptime saturates at MaxUint32 seconds.
func (s *Status) Snapshot() protocol.NodeStatus {
	up := s.now().Sub(s.started) / time.Second
	if up < 0 {
		up = 0
	}
	if up > 1<<32-1 {
		up = 1<<32 - 1
	}
	return protocol.NodeStatus{RebootCount: s.reboots, UptimeSeconds: uint32(up)}
}

func (s *Status) Report(ctx context.Context) {
	st := s.Snapshot()
	if err := s.link.Send(ctx, s.gateway, s.codec.EncodeStatus(st)); err != nil {
		s.logger.Debug("status send failed", "err", err)
		return
	}
	s.logger.Debug("status sent", "reboots", st.RebootCount, "uptime_s", st.UptimeSeconds)
}

// Run reports immediately and then every interval until ctx is done.
func (s *Status) Run(ctx context.Context, interval time.Duration) error {
	s.Report(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Report(ctx)
		}
	}
}
