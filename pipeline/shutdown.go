package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
	"github.com/khaledhikmat/fs-go/service/shutdown"
)

const framerReleaseTimeout = 3 * time.Second

// release releases the camera, closes the valve, centers the nozzle and
// releases the GPIO handles. Each step runs even when an earlier one fails.
func release(canxCtx context.Context, l *responderLoop, stopFramer context.CancelFunc, frames chan FrameData) {
	lgr.Logger.Info("responder shutting down", slog.String("camera", l.camera.Name))

	budget := shutdown.Budget(l.svcs.CfgSvc.GetModeMaxShutdownTime())
	seq := shutdown.New(canxCtx, "responder", budget)

	// A wedged framer must leave most of the budget to the valve
	seq.Run("release camera", func(context.Context) error {
		stopFramer()
		wait := min(framerReleaseTimeout, budget/4)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return nil
				}
				f.Mat.Close()
			case <-timer.C:
				return fmt.Errorf("framer did not stop within %s", wait)
			}
		}
	})

	seq.Run("release controller", func(ctx context.Context) error {
		rec, err := l.controller.Release(ctx)
		l.svcs.MetricsSvc.SetGauge(metrics.ValveOpen, 0)
		l.svcs.MetricsSvc.SetGauge(metrics.EpisodeActive, 0)
		if rec != nil {
			l.recorder.Finish(*rec)
		}
		return err
	})

	seq.Run("release actuator", func(context.Context) error {
		return l.svcs.ActuatorSvc.Close()
	})

	seq.Run("flush clips", func(ctx context.Context) error {
		l.recorder.Close()
		l.recorder.Wait(ctx)
		return nil
	})

	seq.Run("close detector", func(context.Context) error {
		return l.svcs.DetectorSvc.Close()
	})

	l.publishStats()

	if err := seq.Close(); err != nil {
		lgr.Logger.Error("responder shutdown incomplete", slog.Any("error", err))
		report(l.errorStream, model.GenError("responder_shutdown",
			err,
			map[string]interface{}{"camera": l.camera.Name},
			"shutdown step failed"))
		return
	}

	lgr.Logger.Info("responder shutdown complete", slog.String("camera", l.camera.Name))
}
