package mode

import (
	"context"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/actuator"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/detection"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

// Responder drives the configured camera, detector and actuator. With the
// defaults that is the local camera, the cascade model and the GPIO pins.
func Responder(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	actSvc, err := newActuator(svcs.CfgSvc)
	if err != nil {
		return err
	}

	detectorSvc, err := newDetector(svcs.CfgSvc)
	if err != nil {
		if cerr := actSvc.Close(); cerr != nil {
			lgr.Logger.Warn("actuator release failed", slog.Any("error", cerr))
		}
		return err
	}

	svcs.ActuatorSvc = actSvc
	svcs.DetectorSvc = detectorSvc

	return run(canxCtx, svcs, nil)
}

func newActuator(cfgSvc config.IService) (actuator.IService, error) {
	switch t := cfgSvc.GetActuatorParameters().Type; t {
	case config.GPIOActuatorName:
		return actuator.NewGPIO(cfgSvc)
	case config.FakeActuatorName:
		return actuator.NewFake(), nil
	default:
		return nil, xerrors.Errorf("unknown actuator type %q", t)
	}
}

func newDetector(cfgSvc config.IService) (detection.IService, error) {
	switch t := cfgSvc.GetDetectorParameters().Type; t {
	case config.CascadeDetectorName:
		return detection.NewCascade(cfgSvc)
	case config.PeriodicDetectorName:
		return detection.NewPeriodic(cfgSvc), nil
	default:
		return nil, xerrors.Errorf("unknown detector type %q", t)
	}
}
