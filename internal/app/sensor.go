package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"smartenv/internal/clock"
	"smartenv/internal/config"
	"smartenv/internal/db"
	"smartenv/internal/delta"
	"smartenv/internal/dispatch"
	"smartenv/internal/link"
	"smartenv/internal/protocol"
	"smartenv/internal/report"
	"smartenv/internal/sensor"
	"smartenv/internal/timesync"
)

// RunSensor opens the node's state, link and drivers and runs the sensor
// role until ctx is done.
func RunSensor(ctx context.Context, cfg config.Sensor) error {
	slog.Info("initializing sensor node",
		"node", cfg.Link.Self.String(),
		"gateway", cfg.Gateway.String(),
		"driver", cfg.Driver,
		"framing", cfg.Link.Framing.String(),
	)

	reboots, err := recordBoot(ctx, cfg.StateDBPath)
	if err != nil {
		return err
	}
	slog.Info("boot recorded", "reboot_count", reboots)

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

	var drivers *sensor.Drivers
	switch cfg.Driver {
	case "periph":
		drivers, err = sensor.OpenPeriph(cfg)
		if err != nil {
			return err
		}
	default:
		drivers = sensor.NewSim(sensor.SimOptions{})
	}
	defer func() {
		if err := drivers.Close(); err != nil {
			slog.Warn("driver close", "err", err)
		}
	}()

	node := NewSensorNode(cfg, SensorDeps{
		Link:        udp,
		Drivers:     drivers,
		Clock:       clk,
		RebootCount: reboots,
	}, slog.Default())
	err = node.Run(ctx)

	slog.Info("sensor node shutting down")
	return err
}

func recordBoot(ctx context.Context, path string) (int32, error) {
	conn, err := db.Open(path, slog.Default().With("component", "db"))
	if err != nil {
		return 0, fmt.Errorf("open state db: %w", err)
	}
	defer conn.Close()
	return db.NewCounters(conn).RecordBoot(ctx)
}

type SensorDeps struct {
	Link        link.Link
	Drivers     *sensor.Drivers
	Clock       clock.Clock
	RebootCount int32
	// Now drives uptime; defaults to time.Now.
	Now func() time.Time
}

// SensorNode wires the sensor role's tasks around one shared State.
type SensorNode struct {
	cfg    config.Sensor
	link   link.Link
	clock  clock.Clock
	logger *slog.Logger

	State      *sensor.State
	sampler    *sensor.Sampler
	Evaluator  *delta.Evaluator
	presence   *report.Presence
	status     *report.Status
	Requester  *timesync.Requester
	Dispatcher *dispatch.Dispatcher

	edges chan time.Time
}

func NewSensorNode(cfg config.Sensor, deps SensorDeps, logger *slog.Logger) *SensorNode {
	if logger == nil {
		logger = slog.Default()
	}
	codec := protocol.Codec{Framing: cfg.Link.Framing}
	state := sensor.NewState()

	n := &SensorNode{
		cfg:    cfg,
		link:   deps.Link,
		clock:  deps.Clock,
		logger: logger,
		State:  state,
		edges:  make(chan time.Time, 1),
	}
	n.sampler = sensor.NewSampler(deps.Drivers, state, logger.With("component", "sampler"))
	tx := delta.NewTransmitter(deps.Link, cfg.Gateway, codec, logger.With("component", "transmitter"))
	n.Evaluator = delta.NewEvaluator(delta.Options{
		State:  state,
		Clock:  deps.Clock,
		Flush:  tx.Flush,
		Logger: logger.With("component", "evaluator"),
	})
	n.presence = report.NewPresence(deps.Link, cfg.Gateway, codec, logger.With("component", "presence"))
	n.status = report.NewStatus(report.StatusOptions{
		Link:        deps.Link,
		Gateway:     cfg.Gateway,
		Codec:       codec,
		RebootCount: deps.RebootCount,
		Now:         deps.Now,
		Logger:      logger.With("component", "status"),
	})
	n.Requester = timesync.NewRequester(deps.Link, cfg.Gateway, codec, deps.Clock, logger.With("component", "timesync"))
	n.Dispatcher = dispatch.New(
		protocol.Rules{Role: protocol.RoleSensor, Framing: cfg.Link.Framing},
		dispatch.Handlers{TimeResponse: n.Requester.HandleResponse},
		logger.With("component", "dispatch"),
	)
	return n
}

// Run starts every task and blocks until ctx is done or the link fails.
func (n *SensorNode) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.link.Run(ctx, func(f link.Frame) { n.Dispatcher.Handle(ctx, f) })
	})
	g.Go(func() error { return n.sampler.RunClimate(ctx, n.cfg.ClimateInterval) })
	g.Go(func() error { return n.sampler.RunPotentiometer(ctx, n.cfg.PotInterval) })
	g.Go(func() error {
		return n.sampler.WatchMotion(ctx, func() time.Time { return clock.Stamp(n.clock) }, n.edges)
	})
	g.Go(func() error { return n.Evaluator.Run(ctx, n.cfg.EvaluateInterval) })
	g.Go(func() error { return n.presence.Run(ctx, n.edges) })
	g.Go(func() error { return n.status.Run(ctx, n.cfg.StatusInterval) })
	g.Go(func() error { return n.Requester.Run(ctx, n.cfg.TimeSyncInterval) })

	n.logger.Info("sensor node running", "node", n.link.Addr().String())
	return g.Wait()
}
