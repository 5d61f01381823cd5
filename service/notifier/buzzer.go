package notifier

import (
	"context"
	"time"

	"golang.org/x/xerrors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
)

type buzzerChannel struct {
	pin    gpio.PinIO
	pulses int
	pulse  time.Duration
}

// NewBuzzer sounds an active buzzer wired to a GPIO pin
func NewBuzzer(params config.NotifierParameters) (Channel, error) {
	if _, err := host.Init(); err != nil {
		return nil, xerrors.Errorf("initializing gpio host: %w", err)
	}

	pin := gpioreg.ByName(params.BuzzerPin)
	if pin == nil {
		return nil, xerrors.Errorf("buzzer pin %s not found", params.BuzzerPin)
	}

	return newBuzzer(pin, params.BuzzerPulses, params.BuzzerPulse)
}

func newBuzzer(pin gpio.PinIO, pulses int, pulse time.Duration) (*buzzerChannel, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, xerrors.Errorf("silencing buzzer: %w", err)
	}
	return &buzzerChannel{
		pin:    pin,
		pulses: pulses,
		pulse:  pulse,
	}, nil
}

func (c *buzzerChannel) Name() string {
	return "buzzer"
}

func (c *buzzerChannel) Send(ctx context.Context, _ model.Alert) error {
	// Whatever happens, leave the buzzer silent
	defer c.pin.Out(gpio.Low)

	for i := 0; i < c.pulses; i++ {
		if err := c.pin.Out(gpio.High); err != nil {
			return xerrors.Errorf("buzzer on: %w", err)
		}
		if err := sleepCtx(ctx, c.pulse); err != nil {
			return err
		}
		if err := c.pin.Out(gpio.Low); err != nil {
			return xerrors.Errorf("buzzer off: %w", err)
		}
		if err := sleepCtx(ctx, c.pulse); err != nil {
			return err
		}
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
