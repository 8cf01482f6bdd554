// Command dummy-publisher publishes simulated readings for a fleet of nodes
// straight to the broker.
//
// Usage: dummy-publisher <number_of_nodes>
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"smartenv/internal/app"
	"smartenv/internal/config"
	"smartenv/internal/logging"
)

var version = "dev"
var appName = "smartenv-dummy-publisher"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <number_of_nodes>\n", os.Args[0])
		os.Exit(2)
	}
	nodes, err := strconv.Atoi(os.Args[1])
	if err != nil || nodes <= 0 {
		fmt.Fprintf(os.Stderr, "invalid number of nodes %q\n", os.Args[1])
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadPublisherFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Base, logging.Process{App: appName, Version: version})
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"nodes", nodes,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunPublisher(ctx, cfg, nodes); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}
