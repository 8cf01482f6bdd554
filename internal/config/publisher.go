package config

import (
	"fmt"
	"time"
)

// Publisher configures the dummy broker publisher.
type Publisher struct {
	Base
	MQTT MQTT

	NetworkID        string
	ClimateInterval  time.Duration
	MinEventInterval time.Duration
	MaxEventInterval time.Duration
}

func LoadPublisherFromEnv() (Publisher, error) {
	base, err := loadBase()
	if err != nil {
		return Publisher{}, err
	}
	mqttCfg, err := loadMQTT("smartenv-dummy-publisher")
	if err != nil {
		return Publisher{}, err
	}
	climate, err := envDuration("DUMMY_CLIMATE_INTERVAL", "5s")
	if err != nil {
		return Publisher{}, err
	}
	minEvent, err := envDuration("DUMMY_MIN_EVENT_INTERVAL", "5s")
	if err != nil {
		return Publisher{}, err
	}
	maxEvent, err := envDuration("DUMMY_MAX_EVENT_INTERVAL", "15s")
	if err != nil {
		return Publisher{}, err
	}
	if maxEvent < minEvent {
		return Publisher{}, fmt.Errorf("DUMMY_MAX_EVENT_INTERVAL (%v) must not be below DUMMY_MIN_EVENT_INTERVAL (%v)", maxEvent, minEvent)
	}

	return Publisher{
		Base:             base,
		MQTT:             mqttCfg,
		NetworkID:        envString("NETWORK_ID", "dummy.publisher"),
		ClimateInterval:  climate,
		MinEventInterval: minEvent,
		MaxEventInterval: maxEvent,
	}, nil
}
