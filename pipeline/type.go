package pipeline

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/actuator"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/data"
	"github.com/khaledhikmat/fs-go/service/detection"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
	"github.com/khaledhikmat/fs-go/service/notifier"
	"github.com/khaledhikmat/fs-go/service/storage"
	"github.com/khaledhikmat/fs-go/service/stream"
)

var (
	// ErrFrameAcquisition is fatal to the response loop
	ErrFrameAcquisition = xerrors.New("frame acquisition failed")
	// ErrEncode only skips the frame it happened on
	ErrEncode = xerrors.New("frame encoding failed")
)

type FrameData struct {
	Mat       gocv.Mat
	Sequence  int64
	Timestamp time.Time
}

// ServicesFactory carries every service a pipeline stage may need.
// Modes fill it with real or simulated implementations.
type ServicesFactory struct {
	CfgSvc      config.IService
	DataSvc     data.IService
	StorageSvc  storage.IService
	MetricsSvc  metrics.IService
	ActuatorSvc actuator.IService
	NotifierSvc notifier.IService
	DetectorSvc detection.IService
	Broadcaster *stream.Broadcaster
}

// Signature of framer function. The returned channel is closed when the
// framer stops, either on cancellation or because no frame could be read.
type Framer func(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}) chan FrameData

// report never blocks the caller; a full stream loses the item
func report(stream chan interface{}, item interface{}) {
	select {
	case stream <- item:
	default:
		lgr.Logger.Warn("stream full, dropping item", slog.Any("item", item))
	}
}
