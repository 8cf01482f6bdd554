package config

import (
	"fmt"
	"strings"
	"time"

	"smartenv/internal/protocol"
)

type Gateway struct {
	Base
	Link Link
	MQTT MQTT

	// Sensor is the only peer whose frames are relayed to the broker.
	Sensor protocol.Addr

	RelayTopic     string
	RelayTopicMode string
	NetworkID      string

	NTPServers      []string
	NTPSyncInterval time.Duration
	NTPTimeout      time.Duration
	ClockMode       string
}

func LoadGatewayFromEnv() (Gateway, error) {
	base, err := loadBase()
	if err != nil {
		return Gateway{}, err
	}

	lnk, err := loadLink(DefaultGatewayAddress, "127.0.0.1:47000", DefaultSensorAddress+"=127.0.0.1:47001")
	if err != nil {
		return Gateway{}, err
	}

	mqttCfg, err := loadMQTT("smartenv-gateway")
	if err != nil {
		return Gateway{}, err
	}

	sensor, err := envAddr("SENSOR_ADDRESS", DefaultSensorAddress)
	if err != nil {
		return Gateway{}, err
	}

	topicMode := strings.ToLower(envString("RELAY_TOPIC_MODE", "fixed"))
	switch topicMode {
	case "fixed", "per-type":
	default:
		return Gateway{}, fmt.Errorf("invalid RELAY_TOPIC_MODE %q (allowed: fixed, per-type)", topicMode)
	}

	servers := envList("NTP_SERVERS", "pool.ntp.org,time.nist.gov")
	if len(servers) == 0 {
		return Gateway{}, fmt.Errorf("NTP_SERVERS must list at least one server")
	}
	syncInterval, err := envDuration("NTP_SYNC_INTERVAL", "1h")
	if err != nil {
		return Gateway{}, err
	}
	ntpTimeout, err := envDuration("NTP_TIMEOUT", "5s")
	if err != nil {
		return Gateway{}, err
	}

	return Gateway{
		Base:            base,
		Link:            lnk,
		MQTT:            mqttCfg,
		Sensor:          sensor,
		RelayTopic:      envString("RELAY_TOPIC", "sensor/events"),
		RelayTopicMode:  topicMode,
		NetworkID:       envString("NETWORK_ID", "gateway.node"),
		NTPServers:      servers,
		NTPSyncInterval: syncInterval,
		NTPTimeout:      ntpTimeout,
		ClockMode:       envString("CLOCK_MODE", "offset"),
	}, nil
}
