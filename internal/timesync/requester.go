// Package timesync keeps node clocks aligned: sensors ask the gateway for the
// time, the gateway answers and resyncs itself from NTP.
package timesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"smartenv/internal/clock"
	"smartenv/internal/protocol"
)

// Sender is the link send primitive.
type Sender interface {
	Send(ctx context.Context, to protocol.Addr, frame []byte) error
}

// Phase is the requester's position in the request/response exchange.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseRequestSent
	PhaseTimeReceived
)

func (p Phase) String() string {
	switch p {
	case PhaseRequestSent:
		return "request_sent"
	case PhaseTimeReceived:
		return "time_received"
	default:
		return "idle"
	}
}

type RequesterStats struct {
	Sent        uint64
	SendFailed  uint64
	Superseded  uint64 // requests replaced by the next period's request
	Received    uint64
	Unsolicited uint64 // responses that arrived with no request outstanding
	Rejected    uint64
}

// Requester periodically asks the gateway for the time and applies replies.
// There is no timeout or retry: an unanswered request is superseded by the
// next periodic one, so at most one request is ever outstanding.
type Requester struct {
	link    Sender
	gateway protocol.Addr
	codec   protocol.Codec
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	phase  Phase
	sentAt time.Time
	stats  RequesterStats
}

func NewRequester(link Sender, gateway protocol.Addr, codec protocol.Codec, c clock.Clock, logger *slog.Logger) *Requester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{link: link, gateway: gateway, codec: codec, clock: c, logger: logger}
}

// Request sends one TimeRequest, superseding any outstanding one.
func (r *Requester) Request(ctx context.Context) {
	r.mu.Lock()
	if r.phase == PhaseRequestSent {
		r.stats.Superseded++
		r.logger.Debug("time request unanswered, superseding", "sent_at", r.sentAt)
	}
	r.phase = PhaseRequestSent
	r.sentAt = time.Now()
	r.mu.Unlock()

	if err := r.link.Send(ctx, r.gateway, r.codec.EncodeTimeRequest()); err != nil {
		r.mu.Lock()
		r.stats.SendFailed++
		r.mu.Unlock()
		r.logger.Debug("time request send failed", "err", err)
		return
	}

	r.mu.Lock()
	r.stats.Sent++
	r.mu.Unlock()
	r.logger.Debug("time request sent", "to", r.gateway.String())
}

// HandleResponse applies a TimeResponse. Responses are not correlated with
// requests; any positive epoch sets the clock.
func (r *Requester) HandleResponse(from protocol.Addr, epoch int64) {
	if epoch <= 0 {
		r.mu.Lock()
		r.stats.Rejected++
		r.mu.Unlock()
		r.logger.Warn("time response rejected", "from", from.String(), "epoch", epoch)
		return
	}

	t := time.Unix(epoch, 0).UTC()
	if err := r.clock.Set(t); err != nil {
		r.mu.Lock()
		r.stats.Rejected++
		r.mu.Unlock()
		r.logger.Error("clock set failed", "err", err)
		return
	}

	r.mu.Lock()
	if r.phase != PhaseRequestSent {
		r.stats.Unsolicited++
	}
	r.phase = PhaseTimeReceived
	r.stats.Received++
	r.mu.Unlock()

	r.logger.Info("time synchronized", "from", from.String(), "time", t.Format(time.RFC3339))
}

func (r *Requester) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Requester) Stats() RequesterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run requests immediately and then every interval until ctx is done.
func (r *Requester) Run(ctx context.Context, interval time.Duration) error {
	r.Request(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Request(ctx)
		}
	}
}
