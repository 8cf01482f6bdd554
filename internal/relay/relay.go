// Package relay forwards sensor frames received by the gateway to the
// message broker.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"smartenv/internal/protocol"
)

// Publisher is the broker sink. Publish must not block on delivery.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type TopicMode uint8

const (
	// TopicFixed publishes every message to one topic.
	TopicFixed TopicMode = iota
	// TopicPerType publishes to /{network}/{type}/{sensor address}.
	TopicPerType
)

func ParseTopicMode(s string) (TopicMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed":
		return TopicFixed, nil
	case "per-type":
		return TopicPerType, nil
	default:
		return TopicFixed, fmt.Errorf("invalid topic mode %q (allowed: fixed, per-type)", s)
	}
}

type Options struct {
	Topic     string
	Mode      TopicMode
	NetworkID string
	Framing   protocol.Framing
}

type Relay struct {
	pub    Publisher
	opts   Options
	codec  protocol.Codec
	logger *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

func New(pub Publisher, opts Options, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{pub: pub, opts: opts, codec: protocol.Codec{Framing: opts.Framing}, logger: logger}
}

// Topic returns the topic a message of type t from sender is published to.
func (r *Relay) Topic(t protocol.Type, from protocol.Addr) string {
	if r.opts.Mode == TopicFixed {
		return r.opts.Topic
	}
	kind := "raw"
	switch t {
	case protocol.TypeDataBatch, protocol.TypePresence, protocol.TypeNodeStatus:
		kind = t.String()
	}
	return fmt.Sprintf("/%s/%s/%s", r.opts.NetworkID, kind, from)
}

// Handle formats frame and publishes it. Frames that do not decode are
// forwarded as hex. Publish failures drop the message.
func (r *Relay) Handle(_ context.Context, from protocol.Addr, frame []byte) {
	var line string
	t := protocol.TypeUnknown
	// On the gateway an 8-byte legacy frame from the sensor can only be a
	// status heartbeat.
	msg, err := r.codec.Decode(frame, protocol.TypeNodeStatus)
	if err != nil {
		r.logger.Debug("relay: frame not decodable, forwarding raw", "from", from.String(), "err", err)
		line = FormatRaw(from, frame)
	} else {
		t = msg.Type
		line = Format(from, msg)
	}

	topic := r.Topic(t, from)
	if err := r.pub.Publish(topic, []byte(line)); err != nil {
		r.dropped.Add(1)
		r.logger.Warn("relay: message dropped", "topic", topic, "err", err)
		return
	}
	r.published.Add(1)
	r.logger.Info("relay: published", "topic", topic, "message", line)
}

func (r *Relay) Published() uint64 { return r.published.Load() }

func (r *Relay) Dropped() uint64 { return r.dropped.Load() }
