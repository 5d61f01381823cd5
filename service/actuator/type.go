package actuator

import (
	"context"
	"fmt"

	mxerrors "github.com/mdobak/go-xerrors"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
)

// ErrActuatorFault matches any command that could not be confirmed
var ErrActuatorFault = xerrors.New("actuator fault")

// Fault describes a single unconfirmed actuator command.
type Fault struct {
	Command string
	Value   string
	Err     error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("actuator fault: %s(%s): %v", f.Command, f.Value, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) Is(target error) bool {
	return target == ErrActuatorFault
}

// newFault records the stack of the failing command so the logger can render it
func newFault(command, value string, err error) error {
	if mxerrors.StackTrace(err) == nil {
		err = mxerrors.WithStackTrace(err, 1)
	}
	return &Fault{Command: command, Value: value, Err: err}
}

// IService drives the aiming servo and the suppression valve. Both commands are
// idempotent: repeating the last confirmed value is safe and cheap.
type IService interface {
	SetAim(ctx context.Context, direction model.Direction) error
	SetSuppression(ctx context.Context, state model.SuppressionState) error
	Close() error
}
