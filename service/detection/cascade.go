package detection

import (
	"image"
	"log/slog"

	"github.com/samber/lo"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

var ErrModelLoad = xerrors.New("cascade model could not be loaded")

type cascadeService struct {
	params     config.DetectorParameters
	classifier gocv.CascadeClassifier
	gray       gocv.Mat
}

// NewCascade loads the Haar cascade model named in the detector parameters
func NewCascade(cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetDetectorParameters()

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(params.CascadePath) {
		classifier.Close()
		return nil, xerrors.Errorf("%s: %w", params.CascadePath, ErrModelLoad)
	}

	lgr.Logger.Info("cascade detector loaded",
		slog.String("model", params.CascadePath),
		slog.Float64("scale", params.ScaleFactor),
		slog.Int("neighbors", params.MinNeighbors),
	)

	return &cascadeService{
		params:     params,
		classifier: classifier,
		gray:       gocv.NewMat(),
	}, nil
}

func (svc *cascadeService) Detect(frame gocv.Mat) ([]model.DetectionRegion, error) {
	if frame.Empty() {
		return []model.DetectionRegion{}, nil
	}

	gocv.CvtColor(frame, &svc.gray, gocv.ColorBGRToGray)

	rects := svc.classifier.DetectMultiScaleWithParams(svc.gray,
		svc.params.ScaleFactor,
		svc.params.MinNeighbors,
		0,
		image.Point{},
		image.Point{},
	)

	regions := lo.Map(rects, func(r image.Rectangle, _ int) model.DetectionRegion {
		return model.RegionFromRect(r)
	})
	return filterSmall(regions, svc.params.MinRegionArea), nil
}

func (svc *cascadeService) Close() error {
	if err := svc.gray.Close(); err != nil {
		return err
	}
	return svc.classifier.Close()
}

// filterSmall keeps source order so the first region stays the representative one
func filterSmall(regions []model.DetectionRegion, minArea int) []model.DetectionRegion {
	if minArea <= 0 {
		return regions
	}
	return lo.Filter(regions, func(r model.DetectionRegion, _ int) bool {
		return r.Area() >= minArea
	})
}
