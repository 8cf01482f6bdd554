package timesync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"smartenv/internal/clock"
	"smartenv/internal/protocol"
)

// Responder answers TimeRequest frames with the gateway's current epoch.
type Responder struct {
	link   Sender
	codec  protocol.Codec
	clock  clock.Clock
	logger *slog.Logger

	answered atomic.Uint64
}

func NewResponder(link Sender, codec protocol.Codec, c clock.Clock, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{link: link, codec: codec, clock: c, logger: logger}
}

// HandleRequest replies to from. Nothing is sent while the local clock is
// unset, so peers are never handed a bogus time.
func (r *Responder) HandleRequest(ctx context.Context, from protocol.Addr) {
	epoch := clock.Epoch(r.clock)
	if epoch == 0 {
		r.logger.Warn("time request ignored: clock not set", "from", from.String())
		return
	}
	if err := r.link.Send(ctx, from, r.codec.EncodeTimeResponse(epoch)); err != nil {
		r.logger.Debug("time response send failed", "to", from.String(), "err", err)
		return
	}
	r.answered.Add(1)
	r.logger.Debug("time response sent", "to", from.String(), "epoch", epoch)
}

// Answered counts successfully sent responses.
func (r *Responder) Answered() uint64 { return r.answered.Load() }
