package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"smartenv/internal/protocol"
)

const (
	DefaultSensorAddress  = "A0:DD:6C:10:81:40"
	DefaultGatewayAddress = "10:06:1C:BA:1A:00"
)

// Base is shared by every binary.
type Base struct {
	AppEnv   string
	LogLevel slog.Level
	// NoColor is set when NO_COLOR is non-empty.
	NoColor bool
}

// Link configures the node's radio link.
type Link struct {
	Self    protocol.Addr
	Listen  string
	Peers   map[protocol.Addr]string
	Framing protocol.Framing
}

// MQTT configures the broker connection.
type MQTT struct {
	Broker            string
	Port              int
	ClientID          string
	Username          string
	Password          string
	ReconnectInterval time.Duration
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func loadBase() (Base, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Base{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Base{}, err
	}
	return Base{AppEnv: appEnv, LogLevel: level, NoColor: os.Getenv("NO_COLOR") != ""}, nil
}

func loadLink(defaultSelf, defaultListen, defaultPeers string) (Link, error) {
	self, err := envAddr("NODE_ADDRESS", defaultSelf)
	if err != nil {
		return Link{}, err
	}
	peers, err := parsePeers(envString("LINK_PEERS", defaultPeers))
	if err != nil {
		return Link{}, err
	}
	framing, err := protocol.ParseFraming(envString("LINK_FRAMING", "tagged"))
	if err != nil {
		return Link{}, fmt.Errorf("invalid LINK_FRAMING: %w", err)
	}
	return Link{
		Self:    self,
		Listen:  envString("LINK_LISTEN_ADDR", defaultListen),
		Peers:   peers,
		Framing: framing,
	}, nil
}

func loadMQTT(defaultClientID string) (MQTT, error) {
	port, err := envInt("MQTT_PORT", "1883")
	if err != nil {
		return MQTT{}, err
	}
	if port <= 0 || port > 65535 {
		return MQTT{}, fmt.Errorf("MQTT_PORT out of range: %d", port)
	}
	reconnect, err := envDuration("MQTT_RECONNECT_INTERVAL", "5s")
	if err != nil {
		return MQTT{}, err
	}
	return MQTT{
		Broker:            envString("MQTT_BROKER", "localhost"),
		Port:              port,
		ClientID:          envString("MQTT_CLIENT_ID", defaultClientID),
		Username:          envString("MQTT_USERNAME", ""),
		Password:          os.Getenv("MQTT_PASSWORD"),
		ReconnectInterval: reconnect,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// envDuration parses a strictly positive duration.
func envDuration(key, def string) (time.Duration, error) {
	s := envString(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func envInt(key, def string) (int, error) {
	s := envString(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envUint16(key, def string) (uint16, error) {
	s := envString(key, def)
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return uint16(n), nil
}

func envAddr(key, def string) (protocol.Addr, error) {
	s := envString(key, def)
	a, err := protocol.ParseAddr(s)
	if err != nil {
		return protocol.Addr{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return a, nil
}

func envList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(envString(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePeers parses "AA:BB:CC:DD:EE:FF=host:port,..." into a peer table.
func parsePeers(s string) (map[protocol.Addr]string, error) {
	peers := make(map[protocol.Addr]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		addrStr, endpoint, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(endpoint) == "" {
			return nil, fmt.Errorf("invalid LINK_PEERS entry %q (want ADDRESS=host:port)", entry)
		}
		addr, err := protocol.ParseAddr(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid LINK_PEERS entry %q: %w", entry, err)
		}
		peers[addr] = strings.TrimSpace(endpoint)
	}
	return peers, nil
}
