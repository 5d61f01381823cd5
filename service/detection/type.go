package detection

import (
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/fs-go/model"
)

// IService finds candidate hazard regions in a BGR frame. It returns an empty
// slice, never nil, when nothing is found. Implementations are not safe for
// concurrent use.
type IService interface {
	Detect(frame gocv.Mat) ([]model.DetectionRegion, error)
	Close() error
}
