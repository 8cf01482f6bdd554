package sensor

import (
	"context"
	"errors"
)

// ClimateSensor reads temperature (°C) and relative humidity (%).
type ClimateSensor interface {
	ReadClimate(ctx context.Context) (temperature, humidity float32, err error)
}

// Potentiometer reads the wiper position as a raw value in [0, FullScale()].
type Potentiometer interface {
	ReadRaw(ctx context.Context) (int32, error)
	FullScale() int32
}

// MotionSensor blocks until the presence sensor reports a rising edge.
// It returns ctx.Err() once ctx is done.
type MotionSensor interface {
	WaitForMotion(ctx context.Context) error
}

// Drivers bundles the hardware the sensor role samples.
type Drivers struct {
	Climate ClimateSensor
	Pot     Potentiometer
	Motion  MotionSensor

	closers []func() error
}

// Close releases every underlying device.
func (d *Drivers) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Percentage maps raw in [0, full] onto [0, 100] with integer arithmetic,
// clamping out-of-range input.
func Percentage(raw, full int32) int32 {
	if full <= 0 || raw <= 0 {
		return 0
	}
	if raw >= full {
		return 100
	}
	return int32(int64(raw) * 100 / int64(full))
}
