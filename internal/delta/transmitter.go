package delta

import (
	"context"
	"log/slog"

	"smartenv/internal/protocol"
	"smartenv/internal/utils"
)

// Sender is the link send primitive.
type Sender interface {
	Send(ctx context.Context, to protocol.Addr, frame []byte) error
}

// Transmitter sends full batches to the gateway as one frame. Send failures
// are logged and dropped; batches are never retried.
type Transmitter struct {
	link    Sender
	gateway protocol.Addr
	codec   protocol.Codec
	logger  *slog.Logger
}

func NewTransmitter(link Sender, gateway protocol.Addr, codec protocol.Codec, logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{link: link, gateway: gateway, codec: codec, logger: logger}
}

// Flush has the FlushFunc signature.
func (t *Transmitter) Flush(ctx context.Context, batch []protocol.DataReading) {
	frame, err := t.codec.EncodeBatch(batch)
	if err != nil {
		t.logger.Error("batch encode failed", "err", err)
		return
	}
	if err := t.link.Send(ctx, t.gateway, frame); err != nil {
		t.logger.Debug("batch send failed", "to", t.gateway.String(), "size", len(frame), "err", err)
		return
	}
	t.logger.Debug("batch sent", "to", t.gateway.String(), "size", len(frame), "head", utils.BytesToHex(frame[:min(len(frame), 8)]))
}
