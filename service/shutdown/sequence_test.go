package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mdobak/go-xerrors"
)

var errValve = errors.New("valve relay stuck")

func TestPanickingStepDoesNotStopLaterSteps(t *testing.T) {
	seq := New(context.Background(), "responder", time.Second)

	var order []string
	seq.Run("release camera", func(context.Context) error {
		order = append(order, "camera")
		panic("framer wedged")
	})
	seq.Run("release controller", func(context.Context) error {
		order = append(order, "controller")
		return errValve
	})
	seq.Run("flush clips", func(context.Context) error {
		order = append(order, "clips")
		return nil
	})

	if strings.Join(order, ",") != "camera,controller,clips" {
		t.Fatalf("steps ran out of order or were skipped: %v", order)
	}

	err := seq.Close()
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected aggregated errors, got %v", err)
	}
	if len(merr.Errors) != 2 {
		t.Fatalf("expected 2 failed steps, got %d: %v", len(merr.Errors), err)
	}
	if !strings.Contains(merr.Errors[0].Error(), "release camera: panic: framer wedged") {
		t.Fatalf("unexpected panic error %q", merr.Errors[0])
	}
	if len(xerrors.StackTrace(merr.Errors[0])) == 0 {
		t.Fatalf("expected the recovered panic to carry a stack trace")
	}
	if !errors.Is(err, errValve) {
		t.Fatalf("expected the valve error to be wrapped, got %v", err)
	}
}

func TestCleanSequenceReturnsNil(t *testing.T) {
	seq := New(context.Background(), "responder", time.Second)
	seq.Run("release actuator", func(context.Context) error { return nil })
	if err := seq.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestStepsOutliveParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	seq := New(parent, "responder", time.Minute)
	defer seq.Close()

	seq.Run("close valve", func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Fatalf("step context must ignore the cancelled parent: %v", ctx.Err())
		}
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > time.Minute {
			t.Fatalf("expected the sequence budget as deadline, got %v", deadline)
		}
		return nil
	})
}

func TestStepsShareOneDeadline(t *testing.T) {
	seq := New(context.Background(), "responder", 20*time.Millisecond)

	seq.Run("release camera", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	seq.Run("release controller", func(ctx context.Context) error {
		return ctx.Err()
	})

	if err := seq.Close(); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("later steps must see the spent budget, got %v", err)
	}
}

func TestBudgetHasAFloor(t *testing.T) {
	if got := Budget(5); got != 5*time.Second {
		t.Fatalf("expected 5s, got %s", got)
	}
	if got := Budget(0); got != time.Second {
		t.Fatalf("expected the 1s floor, got %s", got)
	}
}
