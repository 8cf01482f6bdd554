package app

import (
	"context"
	"fmt"
	"log/slog"

	"smartenv/internal/config"
	"smartenv/internal/dummy"
	"smartenv/internal/mqtt"
)

// RunPublisher connects to the broker and runs a simulated fleet of nodes
// until ctx is done.
func RunPublisher(ctx context.Context, cfg config.Publisher, nodes int) error {
	if nodes <= 0 {
		return fmt.Errorf("number of nodes must be positive, got %d", nodes)
	}
	slog.Info("initializing dummy publisher",
		"nodes", nodes,
		"network", cfg.NetworkID,
		"mqtt_broker", cfg.MQTT.Broker,
		"mqtt_port", cfg.MQTT.Port,
	)

	client := mqtt.NewClient(cfg.MQTT, slog.Default().With("component", "mqtt"))
	defer client.Disconnect()
	if err := client.Connect(ctx); err != nil {
		return err
	}

	fleet := dummy.NewFleet(client, dummy.Options{
		NetworkID:        cfg.NetworkID,
		Nodes:            nodes,
		ClimateInterval:  cfg.ClimateInterval,
		MinEventInterval: cfg.MinEventInterval,
		MaxEventInterval: cfg.MaxEventInterval,
	}, slog.Default().With("component", "dummy"))
	err := fleet.Run(ctx)

	slog.Info("dummy publisher shutting down")
	return err
}
