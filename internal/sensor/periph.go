package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"smartenv/internal/config"
)

const edgePoll = 500 * time.Millisecond

var adsChannels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// OpenPeriph opens a BME280 and an ADS1115 on the I2C bus and a PIR sensor
// on a GPIO pin.
func OpenPeriph(cfg config.Sensor) (*Drivers, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host.Init: %w", err)
	}

	d := &Drivers{}
	fail := func(err error) (*Drivers, error) {
		_ = d.Close()
		return nil, err
	}

	bus, err := i2creg.Open(cfg.I2CBus) // "" is the default bus, usually /dev/i2c-1
	if err != nil {
		return fail(fmt.Errorf("i2creg.Open(%q): %w", cfg.I2CBus, err))
	}
	d.closers = append(d.closers, bus.Close)

	// Both devices share the bus; serialize transactions.
	var busMu sync.Mutex

	bme, err := bmxx80.NewI2C(bus, cfg.BME280Address, &bmxx80.DefaultOpts)
	if err != nil {
		return fail(fmt.Errorf("bmxx80.NewI2C(%#x): %w", cfg.BME280Address, err))
	}
	d.closers = append(d.closers, bme.Halt)
	d.Climate = &bme280{dev: bme, mu: &busMu}

	ads, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.ADS1115Address})
	if err != nil {
		return fail(fmt.Errorf("ads1x15.NewADS1115(%#x): %w", cfg.ADS1115Address, err))
	}
	d.closers = append(d.closers, ads.Halt)

	fullScale := physic.ElectricPotential(cfg.PotFullScaleMV) * physic.MilliVolt
	pin, err := ads.PinForChannel(adsChannels[cfg.PotChannel], fullScale, 128*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return fail(fmt.Errorf("ads1x15 channel %d: %w", cfg.PotChannel, err))
	}
	d.closers = append(d.closers, pin.Halt)
	d.Pot = &adsPot{pin: pin, fullScaleMV: int32(cfg.PotFullScaleMV), mu: &busMu}

	pir := gpioreg.ByName(cfg.PIRPin)
	if pir == nil {
		return fail(fmt.Errorf("gpio pin %q not found", cfg.PIRPin))
	}
	if err := pir.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return fail(fmt.Errorf("gpio %s: %w", cfg.PIRPin, err))
	}
	d.closers = append(d.closers, pir.Halt)
	d.Motion = &pirSensor{pin: pir}

	return d, nil
}

type bme280 struct {
	dev *bmxx80.Dev
	mu  *sync.Mutex
}

func (b *bme280) ReadClimate(_ context.Context) (float32, float32, error) {
	var env physic.Env
	b.mu.Lock()
	err := b.dev.Sense(&env)
	b.mu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("bme280 sense: %w", err)
	}
	temperature := env.Temperature.Celsius()
	humidity := float64(env.Humidity) / float64(physic.PercentRH)
	return float32(temperature), float32(humidity), nil
}

type adsPot struct {
	pin         ads1x15.PinADC
	fullScaleMV int32
	mu          *sync.Mutex
}

func (p *adsPot) ReadRaw(_ context.Context) (int32, error) {
	var s analog.Sample
	var err error
	p.mu.Lock()
	s, err = p.pin.Read()
	p.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("ads1115 read: %w", err)
	}
	return int32(s.V / physic.MilliVolt), nil
}

func (p *adsPot) FullScale() int32 { return p.fullScaleMV }

type pirSensor struct {
	pin gpio.PinIO
}

func (s *pirSensor) WaitForMotion(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.pin.WaitForEdge(edgePoll) {
			return nil
		}
	}
}
