package actuator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

type Command struct {
	Kind  string // aim or suppression
	Value string
}

// Fake records every command it receives. It is used by the simulator mode and in tests.
type Fake struct {
	mu          sync.Mutex
	commands    []Command
	aim         model.Direction
	suppression model.SuppressionState
	fault       error
	closed      bool
}

func NewFake() *Fake {
	return &Fake{
		suppression: model.SuppressionClosed,
	}
}

func (svc *Fake) SetAim(_ context.Context, direction model.Direction) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.commands = append(svc.commands, Command{Kind: "aim", Value: string(direction)})
	if svc.fault != nil {
		return newFault("setAim", string(direction), svc.fault)
	}

	if svc.aim != direction {
		lgr.Logger.Debug("fake actuator aimed", slog.String("direction", string(direction)))
	}
	svc.aim = direction
	return nil
}

func (svc *Fake) SetSuppression(_ context.Context, state model.SuppressionState) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.commands = append(svc.commands, Command{Kind: "suppression", Value: string(state)})
	if svc.fault != nil {
		return newFault("setSuppression", string(state), svc.fault)
	}

	if svc.suppression != state {
		lgr.Logger.Info("fake actuator valve switched", slog.String("state", string(state)))
	}
	svc.suppression = state
	return nil
}

func (svc *Fake) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.suppression = model.SuppressionClosed
	svc.closed = true
	return nil
}

// FailWith makes every following command fail with err until called with nil
func (svc *Fake) FailWith(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.fault = err
}

func (svc *Fake) Commands() []Command {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	out := make([]Command, len(svc.commands))
	copy(out, svc.commands)
	return out
}

func (svc *Fake) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.commands = nil
}

func (svc *Fake) State() (model.Direction, model.SuppressionState) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.aim, svc.suppression
}

func (svc *Fake) Closed() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.closed
}
