package mode

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/notifier"
)

// run starts the notification dispatcher and the response loop, and persists
// stats and errors until the loop has shut down. A nil framer selects the
// camera's configured framer type.
func run(canxCtx context.Context, svcs pipeline.ServicesFactory, framer pipeline.Framer) error {
	// Create error and stats streams
	errorStream := make(chan interface{}, streamBuffer)
	statsStream := make(chan interface{}, streamBuffer)

	channels, err := notifier.NewChannels(canxCtx, svcs.CfgSvc)
	if err != nil {
		// The loop never started, so its shutdown sequence will not release these
		return multierror.Append(err, svcs.ActuatorSvc.Close(), svcs.DetectorSvc.Close()).ErrorOrNil()
	}
	svcs.NotifierSvc = notifier.NewDispatcher(canxCtx, svcs.CfgSvc, svcs.StorageSvc, svcs.MetricsSvc, channels, errorStream)

	params := svcs.CfgSvc.GetCameraParameters()
	camera := model.Camera{
		ID:         params.ID,
		Name:       params.Name,
		URL:        params.URL,
		FramerType: params.FramerType,
	}
	if framer == nil {
		framer = pipeline.NewFramer(camera)
	}

	result := make(chan error, 1)
	go func() {
		result <- pipeline.Respond(canxCtx, svcs, camera, framer, errorStream, statsStream)
	}()

	// Wait for the loop, stats or errors. The loop owns its shutdown sequence,
	// so cancellation is observed through its result.
	for {
		select {
		case err := <-result:
			if err != nil {
				lgr.Logger.Error("response loop exited", slog.Any("error", err))
			}
			drain(svcs, errorStream, statsStream)
			return err

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

// drain persists whatever the stages reported while shutting down
func drain(svcs pipeline.ServicesFactory, errorStream, statsStream chan interface{}) {
	for {
		select {
		case s := <-statsStream:
			procStats(svcs.DataSvc, s)
		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		default:
			return
		}
	}
}
