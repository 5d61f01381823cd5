package detection

import (
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

type periodicService struct {
	period int
	burst  int
	frames int
	bursts int
}

// NewPeriodic reports a synthetic hazard for BurstLength frames out of every
// Period frames. Each burst lands in a different third of the frame so the
// simulator exercises left, center and right aiming.
func NewPeriodic(cfgSvc config.IService) IService {
	params := cfgSvc.GetDetectorParameters()
	period := max(params.Period, 1)
	burst := min(max(params.BurstLength, 0), period)

	lgr.Logger.Info("periodic detector initialized",
		slog.Int("period", period),
		slog.Int("burst", burst),
	)

	return &periodicService{
		period: period,
		burst:  burst,
	}
}

func (svc *periodicService) Detect(frame gocv.Mat) ([]model.DetectionRegion, error) {
	pos := svc.frames % svc.period
	svc.frames++

	if pos >= svc.burst {
		if pos == svc.burst && svc.burst > 0 {
			svc.bursts++
		}
		return []model.DetectionRegion{}, nil
	}

	return []model.DetectionRegion{syntheticRegion(svc.bursts, frame.Cols(), frame.Rows())}, nil
}

func (svc *periodicService) Close() error {
	return nil
}

func syntheticRegion(burst, width, height int) model.DetectionRegion {
	size := max(min(width, height)/6, 1)
	centers := []int{width / 6, width / 2, width - width/6}
	cx := centers[burst%len(centers)]

	return model.DetectionRegion{
		X:      cx - size/2,
		Y:      height/2 - size/2,
		Width:  size,
		Height: size,
	}
}
