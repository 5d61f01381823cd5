package actuator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

type gpioService struct {
	params config.ActuatorParameters
	servo  gpio.PinIO
	valve  gpio.PinIO

	mu          sync.Mutex
	aim         model.Direction
	suppression model.SuppressionState
}

// NewGPIO drives a hobby servo (PWM) and a relay-switched solenoid valve
// through periph.io.
func NewGPIO(cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetActuatorParameters()

	if _, err := host.Init(); err != nil {
		return nil, xerrors.Errorf("initializing gpio host: %w", err)
	}

	servo := gpioreg.ByName(params.ServoPin)
	if servo == nil {
		return nil, xerrors.Errorf("servo pin %s not found", params.ServoPin)
	}

	valve := gpioreg.ByName(params.ValvePin)
	if valve == nil {
		return nil, xerrors.Errorf("valve pin %s not found", params.ValvePin)
	}

	return newGPIO(params, servo, valve)
}

func newGPIO(params config.ActuatorParameters, servo, valve gpio.PinIO) (*gpioService, error) {
	// The valve must start closed
	if err := valve.Out(gpio.Low); err != nil {
		return nil, xerrors.Errorf("closing valve on %s: %w", valve.Name(), err)
	}

	lgr.Logger.Info(
		"gpio actuator initialized",
		slog.String("servo", servo.Name()),
		slog.String("valve", valve.Name()),
	)

	return &gpioService{
		params:      params,
		servo:       servo,
		valve:       valve,
		suppression: model.SuppressionClosed,
	}, nil
}

func (svc *gpioService) SetAim(ctx context.Context, direction model.Direction) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.aim == direction {
		return nil
	}

	angle, err := svc.angle(direction)
	if err != nil {
		return newFault("setAim", string(direction), err)
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	// Forget the last position until the move is confirmed
	svc.aim = ""

	if err := svc.servo.PWM(servoDuty(angle), physic.Frequency(svc.params.PWMFrequency)*physic.Hertz); err != nil {
		return newFault("setAim", string(direction), err)
	}

	// Give the horn time to travel, then stop driving it so it does not jitter
	select {
	case <-ctx.Done():
		_ = svc.servo.Out(gpio.Low)
		return newFault("setAim", string(direction), ctx.Err())
	case <-time.After(svc.params.ServoSettle):
	}

	if err := svc.servo.Out(gpio.Low); err != nil {
		return newFault("setAim", string(direction), err)
	}

	svc.aim = direction
	lgr.Logger.Debug(
		"servo aimed",
		slog.String("direction", string(direction)),
		slog.Float64("angle", angle),
	)
	return nil
}

func (svc *gpioService) SetSuppression(ctx context.Context, state model.SuppressionState) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.suppression == state {
		return nil
	}

	ctx, cancel := svc.withTimeout(ctx)
	defer cancel()

	level := gpio.Low
	switch state {
	case model.SuppressionOpen:
		level = gpio.High
	case model.SuppressionClosed:
	default:
		return newFault("setSuppression", string(state), xerrors.New("unknown suppression state"))
	}

	if err := ctx.Err(); err != nil {
		return newFault("setSuppression", string(state), err)
	}

	svc.suppression = ""
	if err := svc.valve.Out(level); err != nil {
		return newFault("setSuppression", string(state), err)
	}

	svc.suppression = state
	lgr.Logger.Info(
		"valve switched",
		slog.String("state", string(state)),
	)
	return nil
}

// Close drives the valve closed and releases both pins. Every step runs even if
// an earlier one fails.
func (svc *gpioService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var result *multierror.Error
	if err := svc.valve.Out(gpio.Low); err != nil {
		result = multierror.Append(result, xerrors.Errorf("closing valve: %w", err))
	}
	svc.suppression = model.SuppressionClosed

	if err := svc.servo.Out(gpio.Low); err != nil {
		result = multierror.Append(result, xerrors.Errorf("stopping servo: %w", err))
	}
	if err := svc.servo.Halt(); err != nil {
		result = multierror.Append(result, xerrors.Errorf("halting servo pin: %w", err))
	}
	if err := svc.valve.Halt(); err != nil {
		result = multierror.Append(result, xerrors.Errorf("halting valve pin: %w", err))
	}

	return result.ErrorOrNil()
}

func (svc *gpioService) angle(direction model.Direction) (float64, error) {
	switch direction {
	case model.AimLeft:
		return svc.params.LeftAngle, nil
	case model.AimCenter:
		return svc.params.CenterAngle, nil
	case model.AimRight:
		return svc.params.RightAngle, nil
	}
	return 0, xerrors.Errorf("unknown direction %q", direction)
}

func (svc *gpioService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if svc.params.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, svc.params.CommandTimeout)
}

// servoDuty maps 0-180 degrees onto a 2.5%-12.5% duty cycle.
func servoDuty(angle float64) gpio.Duty {
	percent := 2.5 + angle/18
	return gpio.Duty(float64(gpio.DutyMax) * percent / 100)
}
