package actuator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdobak/go-xerrors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
)

func testParams() config.ActuatorParameters {
	p := config.Defaults().Actuator
	p.ServoSettle = time.Millisecond
	p.CommandTimeout = time.Second
	return p
}

func newTestGPIO(t *testing.T, params config.ActuatorParameters) (*gpioService, *gpiotest.Pin, *gpiotest.Pin) {
	t.Helper()

	servo := &gpiotest.Pin{N: "GPIO17", Num: 17}
	valve := &gpiotest.Pin{N: "GPIO23", Num: 23, L: gpio.High}

	svc, err := newGPIO(params, servo, valve)
	if err != nil {
		t.Fatalf("newGPIO: %v", err)
	}
	return svc, servo, valve
}

func TestNewGPIOStartsWithValveClosed(t *testing.T) {
	_, _, valve := newTestGPIO(t, testParams())

	if valve.L != gpio.Low {
		t.Fatalf("expected valve low after init, got %v", valve.L)
	}
}

func TestServoDutyMapping(t *testing.T) {
	tests := []struct {
		angle   float64
		percent float64
	}{
		{0, 2.5},
		{30, 2.5 + 30.0/18},
		{90, 7.5},
		{150, 2.5 + 150.0/18},
		{180, 12.5},
	}

	for _, tt := range tests {
		want := gpio.Duty(float64(gpio.DutyMax) * tt.percent / 100)
		if got := servoDuty(tt.angle); got != want {
			t.Fatalf("angle %.0f: expected duty %v, got %v", tt.angle, want, got)
		}
	}
}

func TestSetAimDrivesPWMThenStops(t *testing.T) {
	svc, servo, _ := newTestGPIO(t, testParams())

	if err := svc.SetAim(context.Background(), model.AimLeft); err != nil {
		t.Fatalf("SetAim: %v", err)
	}

	if servo.D != servoDuty(30) {
		t.Fatalf("expected duty for 30 degrees, got %v", servo.D)
	}
	if servo.F != 50*physic.Hertz {
		t.Fatalf("expected 50Hz, got %v", servo.F)
	}
	if servo.L != gpio.Low {
		t.Fatalf("expected servo output low after settle, got %v", servo.L)
	}
	if svc.aim != model.AimLeft {
		t.Fatalf("expected confirmed aim left, got %q", svc.aim)
	}
}

func TestSetAimIsIdempotent(t *testing.T) {
	svc, servo, _ := newTestGPIO(t, testParams())

	if err := svc.SetAim(context.Background(), model.AimRight); err != nil {
		t.Fatalf("SetAim: %v", err)
	}

	// A repeat must not touch the pin
	servo.D = 0
	if err := svc.SetAim(context.Background(), model.AimRight); err != nil {
		t.Fatalf("repeat SetAim: %v", err)
	}
	if servo.D != 0 {
		t.Fatalf("expected repeat aim to be a no-op, duty changed to %v", servo.D)
	}
}

func TestSetAimTimeoutIsFault(t *testing.T) {
	params := testParams()
	params.ServoSettle = time.Second
	params.CommandTimeout = 5 * time.Millisecond
	svc, _, _ := newTestGPIO(t, params)

	err := svc.SetAim(context.Background(), model.AimRight)
	if !errors.Is(err, ErrActuatorFault) {
		t.Fatalf("expected actuator fault, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the fault to wrap the deadline, got %v", err)
	}
	if svc.aim != "" {
		t.Fatalf("unconfirmed move must not be remembered, got %q", svc.aim)
	}
	if len(xerrors.StackTrace(err)) == 0 {
		t.Fatalf("expected the fault to carry the stack of the failed command")
	}
}

func TestSetAimUnknownDirection(t *testing.T) {
	svc, _, _ := newTestGPIO(t, testParams())

	if err := svc.SetAim(context.Background(), model.Direction("up")); !errors.Is(err, ErrActuatorFault) {
		t.Fatalf("expected actuator fault for unknown direction, got %v", err)
	}
}

func TestSetSuppressionRepeatSafe(t *testing.T) {
	svc, _, valve := newTestGPIO(t, testParams())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.SetSuppression(ctx, model.SuppressionOpen); err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		if valve.L != gpio.High {
			t.Fatalf("expected valve high after open #%d", i)
		}
	}

	if err := svc.SetSuppression(ctx, model.SuppressionClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if valve.L != gpio.Low {
		t.Fatalf("expected valve low after close")
	}
}

func TestCloseLeavesValveClosed(t *testing.T) {
	svc, servo, valve := newTestGPIO(t, testParams())

	if err := svc.SetSuppression(context.Background(), model.SuppressionOpen); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if valve.L != gpio.Low || servo.L != gpio.Low {
		t.Fatalf("expected both pins low after close, valve=%v servo=%v", valve.L, servo.L)
	}
}

func TestFakeRecordsAndFails(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	_ = fake.SetAim(ctx, model.AimLeft)
	_ = fake.SetSuppression(ctx, model.SuppressionOpen)

	fake.FailWith(errors.New("relay stuck"))
	if err := fake.SetSuppression(ctx, model.SuppressionClosed); !errors.Is(err, ErrActuatorFault) {
		t.Fatalf("expected injected fault, got %v", err)
	}

	cmds := fake.Commands()
	if len(cmds) != 3 {
		t.Fatalf("expected 3 recorded commands, got %d", len(cmds))
	}
	aim, sup := fake.State()
	if aim != model.AimLeft || sup != model.SuppressionOpen {
		t.Fatalf("failed command must not change state, got %s/%s", aim, sup)
	}
}
