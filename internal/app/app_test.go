package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartenv/internal/clock"
	"smartenv/internal/config"
	"smartenv/internal/link"
	"smartenv/internal/protocol"
	"smartenv/internal/sensor"
	"smartenv/internal/timesync"
)

var (
	sensorAddr  = protocol.Addr{0xA0, 0xDD, 0x6C, 0x10, 0x81, 0x40}
	gatewayAddr = protocol.Addr{0x10, 0x06, 0x1C, 0xBA, 0x1A, 0x00}
	syncedTime  = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rampClimate returns a temperature one degree higher on every read.
type rampClimate struct{ n atomic.Int32 }

func (c *rampClimate) ReadClimate(context.Context) (float32, float32, error) {
	n := c.n.Add(1)
	return 20 + float32(n), 40, nil
}

type fixedPot struct{}

func (fixedPot) ReadRaw(context.Context) (int32, error) { return 1650, nil }
func (fixedPot) FullScale() int32                       { return 3300 }

// oneShotMotion reports a single edge, then blocks.
type oneShotMotion struct{ fired atomic.Bool }

func (m *oneShotMotion) WaitForMotion(ctx context.Context) error {
	if !m.fired.Swap(true) {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (b *fakeBroker) Connect(context.Context) error { return nil }

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msgs == nil {
		b.msgs = make(map[string][]string)
	}
	b.msgs[topic] = append(b.msgs[topic], string(payload))
	return nil
}

func (b *fakeBroker) messages(topic string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs[topic]...)
}

type fixedSource struct{ t time.Time }

func (s fixedSource) Now(context.Context) (time.Time, error) { return s.t, nil }

var _ timesync.Source = fixedSource{}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// unsetClock starts at the Unix epoch, so it reads as unset until synced.
func unsetClock() *clock.Offset {
	start := time.Now()
	return clock.NewOffsetFrom(func() time.Time { return time.Unix(0, 0).Add(time.Since(start)) })
}

type network struct {
	broker      *fakeBroker
	sensorClock *clock.Offset
	sensor      *SensorNode
	gateway     *GatewayNode
}

func startNetwork(t *testing.T, framing protocol.Framing) *network {
	t.Helper()
	hub := link.NewHub()
	n := &network{broker: &fakeBroker{}, sensorClock: unsetClock()}

	sensorCfg := config.Sensor{
		Link:             config.Link{Self: sensorAddr, Framing: framing},
		Gateway:          gatewayAddr,
		ClimateInterval:  5 * time.Millisecond,
		PotInterval:      5 * time.Millisecond,
		EvaluateInterval: 5 * time.Millisecond,
		StatusInterval:   20 * time.Millisecond,
		TimeSyncInterval: 20 * time.Millisecond,
	}
	n.sensor = NewSensorNode(sensorCfg, SensorDeps{
		Link:        hub.Attach(sensorAddr),
		Drivers:     &sensor.Drivers{Climate: &rampClimate{}, Pot: fixedPot{}, Motion: &oneShotMotion{}},
		Clock:       n.sensorClock,
		RebootCount: 3,
	}, discardLogger())

	gatewayCfg := config.Gateway{
		Link:            config.Link{Self: gatewayAddr, Framing: framing},
		Sensor:          sensorAddr,
		RelayTopicMode:  "per-type",
		NetworkID:       "net",
		NTPSyncInterval: time.Hour,
	}
	gw, err := NewGatewayNode(gatewayCfg, GatewayDeps{
		Link:       hub.Attach(gatewayAddr),
		Broker:     n.broker,
		Clock:      clock.NewOffsetFrom(func() time.Time { return time.Unix(0, 0) }),
		TimeSource: fixedSource{t: syncedTime},
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewGatewayNode: %v", err)
	}
	n.gateway = gw

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = n.gateway.Run(ctx) }()
	go func() { defer wg.Done(); _ = n.sensor.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return n
}

func TestNetwork_EndToEnd(t *testing.T) {
	for _, framing := range []protocol.Framing{protocol.FramingTagged, protocol.FramingLegacy} {
		t.Run(framing.String(), func(t *testing.T) {
			n := startNetwork(t, framing)

			waitFor(t, "sensor clock sync", func() bool {
				return n.sensor.Requester.Phase() == timesync.PhaseTimeReceived
			})
			if got := clock.Epoch(n.sensorClock); got < syncedTime.Unix() {
				t.Errorf("sensor epoch = %d, want >= %d", got, syncedTime.Unix())
			}

			presenceTopic := "/net/presence/" + sensorAddr.String()
			waitFor(t, "presence relayed", func() bool { return len(n.broker.messages(presenceTopic)) > 0 })
			if msg := n.broker.messages(presenceTopic)[0]; !strings.Contains(msg, "present=true") {
				t.Errorf("presence message = %q", msg)
			}

			dataTopic := "/net/data/" + sensorAddr.String()
			waitFor(t, "batch relayed", func() bool { return len(n.broker.messages(dataTopic)) > 0 })
			if msg := n.broker.messages(dataTopic)[0]; !strings.Contains(msg, "10 readings") {
				t.Errorf("data message = %q", msg)
			}

			statusTopic := "/net/status/" + sensorAddr.String()
			waitFor(t, "status relayed", func() bool { return len(n.broker.messages(statusTopic)) > 0 })
			if msg := n.broker.messages(statusTopic)[0]; !strings.Contains(msg, "reboots=3") {
				t.Errorf("status message = %q", msg)
			}
		})
	}
}

func TestNewGatewayNode_InvalidTopicMode(t *testing.T) {
	_, err := NewGatewayNode(config.Gateway{RelayTopicMode: "bogus"}, GatewayDeps{
		Link:       link.NewHub().Attach(gatewayAddr),
		Broker:     &fakeBroker{},
		Clock:      clock.NewOffset(),
		TimeSource: fixedSource{t: syncedTime},
	}, discardLogger())
	if err == nil {
		t.Fatal("expected error for invalid topic mode")
	}
}
