package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/actuator"
	"github.com/khaledhikmat/fs-go/service/detection"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

// Simulator exercises the whole loop without hardware: synthetic frames,
// periodic detections and an actuator that only logs.
func Simulator(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	lgr.Logger.Info("simulator starting",
		slog.Int("period", svcs.CfgSvc.GetDetectorParameters().Period),
		slog.Int("burst", svcs.CfgSvc.GetDetectorParameters().BurstLength),
	)

	svcs.ActuatorSvc = actuator.NewFake()
	svcs.DetectorSvc = detection.NewPeriodic(svcs.CfgSvc)

	return run(canxCtx, svcs, pipeline.RandomFramer)
}
