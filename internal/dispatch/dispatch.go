// Package dispatch routes inbound link frames to the local node's handlers.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"smartenv/internal/link"
	"smartenv/internal/protocol"
	"smartenv/internal/utils"
)

// Handlers are the receive-side entry points. A nil handler drops its route.
type Handlers struct {
	TimeRequest  func(ctx context.Context, from protocol.Addr)
	TimeResponse func(from protocol.Addr, epoch int64)
	Relay        func(ctx context.Context, from protocol.Addr, frame []byte)
}

type Dispatcher struct {
	rules    protocol.Rules
	codec    protocol.Codec
	handlers Handlers
	logger   *slog.Logger

	mu     sync.Mutex
	counts map[protocol.Route]uint64
}

func New(rules protocol.Rules, handlers Handlers, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		rules:    rules,
		codec:    protocol.Codec{Framing: rules.Framing},
		handlers: handlers,
		logger:   logger,
		counts:   make(map[protocol.Route]uint64),
	}
}

// Handle classifies f and invokes the matching handler. It returns the route
// the frame was delivered to, RouteDrop if none.
func (d *Dispatcher) Handle(ctx context.Context, f link.Frame) protocol.Route {
	route := protocol.Classify(f.Data, f.From, d.rules)
	route = d.deliver(ctx, route, f)

	d.mu.Lock()
	d.counts[route]++
	d.mu.Unlock()
	return route
}

func (d *Dispatcher) deliver(ctx context.Context, route protocol.Route, f link.Frame) protocol.Route {
	switch route {
	case protocol.RouteTimeRequest:
		if d.handlers.TimeRequest == nil {
			break
		}
		if _, err := d.codec.Decode(f.Data, protocol.TypeTimeRequest); err != nil {
			d.drop(f, "malformed time request", err)
			return protocol.RouteDrop
		}
		d.handlers.TimeRequest(ctx, f.From)
		return route

	case protocol.RouteTimeResponse:
		if d.handlers.TimeResponse == nil {
			break
		}
		msg, err := d.codec.Decode(f.Data, protocol.TypeTimeResponse)
		if err != nil {
			d.drop(f, "malformed time response", err)
			return protocol.RouteDrop
		}
		d.handlers.TimeResponse(f.From, msg.Epoch)
		return route

	case protocol.RouteRelay:
		if d.handlers.Relay == nil {
			break
		}
		d.handlers.Relay(ctx, f.From, f.Data)
		return route
	}

	d.drop(f, "no handler", nil)
	return protocol.RouteDrop
}

func (d *Dispatcher) drop(f link.Frame, reason string, err error) {
	attrs := []any{
		"reason", reason,
		"from", f.From.String(),
		"size", len(f.Data),
		"data", utils.BytesToHex(f.Data),
	}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	d.logger.Debug("frame dropped", attrs...)
}

// Counts returns how many frames went to each route.
func (d *Dispatcher) Counts() map[protocol.Route]uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[protocol.Route]uint64, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}
