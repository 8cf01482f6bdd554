package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"smartenv/internal/clock"
	"smartenv/internal/config"
	"smartenv/internal/dispatch"
	"smartenv/internal/link"
	"smartenv/internal/mqtt"
	"smartenv/internal/protocol"
	"smartenv/internal/relay"
	"smartenv/internal/timesync"
)

// RunGateway runs the gateway role until ctx is done.
func RunGateway(ctx context.Context, cfg config.Gateway) error {
	slog.Info("initializing gateway",
		"node", cfg.Link.Self.String(),
		"sensor", cfg.Sensor.String(),
		"mqtt_broker", cfg.MQTT.Broker,
		"mqtt_port", cfg.MQTT.Port,
		"mqtt_client_id", cfg.MQTT.ClientID,
		"relay_topic_mode", cfg.RelayTopicMode,
	)

	clk, err := clock.New(cfg.ClockMode)
	if err != nil {
		return err
	}

	udp, err := link.NewUDP(link.UDPOptions{
		Self:   cfg.Link.Self,
		Listen: cfg.Link.Listen,
		Peers:  cfg.Link.Peers,
	}, slog.Default().With("component", "link"))
	if err != nil {
		return err
	}
	defer udp.Close()

	mqttClient := mqtt.NewClient(cfg.MQTT, slog.Default().With("component", "mqtt"))
	defer mqttClient.Disconnect()

	node, err := NewGatewayNode(cfg, GatewayDeps{
		Link:       udp,
		Broker:     mqttClient,
		Clock:      clk,
		TimeSource: timesync.NewNTPSource(cfg.NTPServers, cfg.NTPTimeout, slog.Default().With("component", "ntp")),
	}, slog.Default())
	if err != nil {
		return err
	}
	err = node.Run(ctx)

	slog.Info("gateway shutting down")
	return err
}

// Broker is the gateway's view of the MQTT connection.
type Broker interface {
	relay.Publisher
	Connect(ctx context.Context) error
}

type GatewayDeps struct {
	Link       link.Link
	Broker     Broker
	Clock      clock.Clock
	TimeSource timesync.Source
}

type GatewayNode struct {
	cfg    config.Gateway
	link   link.Link
	broker Broker
	logger *slog.Logger

	Responder  *timesync.Responder
	Relay      *relay.Relay
	Syncer     *timesync.Syncer
	Dispatcher *dispatch.Dispatcher
}

func NewGatewayNode(cfg config.Gateway, deps GatewayDeps, logger *slog.Logger) (*GatewayNode, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode, err := relay.ParseTopicMode(cfg.RelayTopicMode)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	codec := protocol.Codec{Framing: cfg.Link.Framing}

	n := &GatewayNode{cfg: cfg, link: deps.Link, broker: deps.Broker, logger: logger}
	n.Responder = timesync.NewResponder(deps.Link, codec, deps.Clock, logger.With("component", "timesync"))
	n.Relay = relay.New(deps.Broker, relay.Options{
		Topic:     cfg.RelayTopic,
		Mode:      mode,
		NetworkID: cfg.NetworkID,
		Framing:   cfg.Link.Framing,
	}, logger.With("component", "relay"))
	n.Syncer = timesync.NewSyncer(deps.TimeSource, deps.Clock, logger.With("component", "ntp"))
	n.Dispatcher = dispatch.New(
		protocol.Rules{Role: protocol.RoleGateway, Framing: cfg.Link.Framing, Sensor: cfg.Sensor},
		dispatch.Handlers{
			TimeRequest: n.Responder.HandleRequest,
			Relay:       n.Relay.Handle,
		},
		logger.With("component", "dispatch"),
	)
	return n, nil
}

func (n *GatewayNode) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.link.Run(ctx, func(f link.Frame) { n.Dispatcher.Handle(ctx, f) })
	})
	g.Go(func() error { return n.Syncer.Run(ctx, n.cfg.NTPSyncInterval) })
	g.Go(func() error {
		// The client retries on its own; frames relayed before the first
		// connection are dropped with a warning.
		if err := n.broker.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			n.logger.Error("mqtt connect failed", "error", err)
		}
		return nil
	})

	n.logger.Info("gateway running", "node", n.link.Addr().String())
	return g.Wait()
}
