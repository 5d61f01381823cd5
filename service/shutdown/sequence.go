package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/fs-go/service/lgr"
)

// Grace is how much longer than Budget the process waits for a sequence
const Grace = 3 * time.Second

// Budget turns the configured shutdown seconds into the sequence deadline
func Budget(maxShutdownSeconds int) time.Duration {
	return max(time.Duration(maxShutdownSeconds)*time.Second, time.Second)
}

// Sequence runs cleanup steps in order under one shared deadline. A failing or
// panicking step is recorded and the next step still runs.
type Sequence struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	result error
}

// New starts a sequence bounded by budget. The parent's cancellation is not
// inherited: cleanup commands must still go out once the process is stopping.
func New(parent context.Context, name string, budget time.Duration) *Sequence {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), budget)
	return &Sequence{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context carries the sequence deadline
func (s *Sequence) Context() context.Context {
	return s.ctx
}

// Run executes one step. Errors and panics are collected.
func (s *Sequence) Run(step string, fn func(ctx context.Context) error) {
	begin := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.fail(step, xerrors.FromRecover(r))
		}
		lgr.Logger.Debug("shutdown step done",
			slog.String("sequence", s.name),
			slog.String("step", step),
			slog.Duration("elapsed", time.Since(begin)),
		)
	}()

	if err := fn(s.ctx); err != nil {
		s.fail(step, err)
	}
}

// Close releases the deadline and returns the errors of all failed steps
func (s *Sequence) Close() error {
	s.cancel()
	return s.result
}

func (s *Sequence) fail(step string, err error) {
	lgr.Logger.Warn("shutdown step failed",
		slog.String("sequence", s.name),
		slog.String("step", step),
		slog.Any("error", err),
	)
	s.result = multierror.Append(s.result, fmt.Errorf("%s: %w", step, err))
}
