package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/data"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

// Processor runs one mode until canxCtx is cancelled or the mode fails.
// svcs arrives with the shared services filled in; the mode supplies the
// actuator, detector and notifier it needs.
type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

const streamBuffer = 64

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.FramerStats:
		err = datasvc.NewFramerStats(stats)
	case model.ResponderStats:
		err = datasvc.NewResponderStats(stats)
	case model.NotifierStats:
		err = datasvc.NewNotifierStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	lgr.Logger.Debug("error reported", slog.Any("error", err))

	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
