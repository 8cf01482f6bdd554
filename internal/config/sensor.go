package config

import (
	"fmt"
	"strings"
	"time"

	"smartenv/internal/protocol"
)

type Sensor struct {
	Base
	Link Link

	Gateway protocol.Addr

	// Driver selects the hardware backend: "periph" or "sim".
	Driver         string
	I2CBus         string
	BME280Address  uint16
	ADS1115Address uint16
	PotChannel     int
	PotFullScaleMV int
	PIRPin         string

	ClimateInterval  time.Duration
	PotInterval      time.Duration
	EvaluateInterval time.Duration
	StatusInterval   time.Duration
	TimeSyncInterval time.Duration

	// StateDBPath holds the reboot counter. Keep it on a tmpfs so the counter
	// survives restarts but not power loss.
	StateDBPath string
	ClockMode   string
}

func LoadSensorFromEnv() (Sensor, error) {
	base, err := loadBase()
	if err != nil {
		return Sensor{}, err
	}

	lnk, err := loadLink(DefaultSensorAddress, "127.0.0.1:47001", DefaultGatewayAddress+"=127.0.0.1:47000")
	if err != nil {
		return Sensor{}, err
	}

	gateway, err := envAddr("GATEWAY_ADDRESS", DefaultGatewayAddress)
	if err != nil {
		return Sensor{}, err
	}

	driver := strings.ToLower(envString("SENSOR_DRIVER", "sim"))
	switch driver {
	case "periph", "sim":
	default:
		return Sensor{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: periph, sim)", driver)
	}

	bme280Address, err := envUint16("BME280_ADDRESS", "0x76")
	if err != nil {
		return Sensor{}, err
	}
	adsAddress, err := envUint16("ADS1115_ADDRESS", "0x48")
	if err != nil {
		return Sensor{}, err
	}
	potChannel, err := envInt("POT_CHANNEL", "0")
	if err != nil {
		return Sensor{}, err
	}
	if potChannel < 0 || potChannel > 3 {
		return Sensor{}, fmt.Errorf("POT_CHANNEL out of range: %d (allowed: 0-3)", potChannel)
	}
	potFullScale, err := envInt("POT_FULL_SCALE_MV", "3300")
	if err != nil {
		return Sensor{}, err
	}
	if potFullScale <= 0 {
		return Sensor{}, fmt.Errorf("POT_FULL_SCALE_MV must be positive, got %d", potFullScale)
	}

	climate, err := envDuration("CLIMATE_POLL_INTERVAL", "20s")
	if err != nil {
		return Sensor{}, err
	}
	pot, err := envDuration("POT_POLL_INTERVAL", "20s")
	if err != nil {
		return Sensor{}, err
	}
	evaluate, err := envDuration("EVALUATE_INTERVAL", "1s")
	if err != nil {
		return Sensor{}, err
	}
	status, err := envDuration("STATUS_INTERVAL", "60s")
	if err != nil {
		return Sensor{}, err
	}
	timeSync, err := envDuration("TIME_SYNC_INTERVAL", "60s")
	if err != nil {
		return Sensor{}, err
	}

	return Sensor{
		Base:             base,
		Link:             lnk,
		Gateway:          gateway,
		Driver:           driver,
		I2CBus:           envString("I2C_BUS", ""),
		BME280Address:    bme280Address,
		ADS1115Address:   adsAddress,
		PotChannel:       potChannel,
		PotFullScaleMV:   potFullScale,
		PIRPin:           envString("PIR_PIN", "GPIO13"),
		ClimateInterval:  climate,
		PotInterval:      pot,
		EvaluateInterval: evaluate,
		StatusInterval:   status,
		TimeSyncInterval: timeSync,
		StateDBPath:      envString("STATE_DB_PATH", "/run/smartenv/sensor-state.db"),
		ClockMode:        envString("CLOCK_MODE", "offset"),
	}, nil
}
