package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/responder"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
)

type responderLoop struct {
	svcs        ServicesFactory
	camera      model.Camera
	errorStream chan interface{}
	statsStream chan interface{}
	controller  *responder.Controller
	recorder    *episodeRecorder

	stats         model.ResponderStats
	startTime     time.Time
	totalProcTime time.Duration
}

// Respond runs the detection-to-actuation loop for one camera. It returns nil
// when canxCtx is cancelled and ErrFrameAcquisition when the framer gives up.
// The shutdown sequence runs on every exit path.
func Respond(canxCtx context.Context,
	svcs ServicesFactory,
	camera model.Camera,
	framer Framer,
	errorStream chan interface{},
	statsStream chan interface{}) (err error) {
	runID := uuid.NewString()
	params := svcs.CfgSvc.GetResponderParameters()

	lgr.Logger.Info(
		"responder starting....",
		slog.String("runID", runID),
		slog.String("camera", camera.Name),
		slog.String("framerType", camera.FramerType),
		slog.Duration("cooldown", params.Cooldown),
		slog.String("reopenPolicy", params.ReopenPolicy),
	)

	loop := &responderLoop{
		svcs:        svcs,
		camera:      camera,
		errorStream: errorStream,
		statsStream: statsStream,
		controller:  responder.NewController(camera.Name, params, svcs.ActuatorSvc, svcs.NotifierSvc),
		recorder:    newEpisodeRecorder(svcs, camera, errorStream),
		stats:       model.ResponderStats{RunID: runID, Camera: camera.Name},
		startTime:   time.Now(),
	}

	if err := loop.controller.Start(canxCtx); err != nil {
		loop.fault(canxCtx, err)
	}

	// The framer gets its own context so that every exit path stops the capture
	framerCtx, stopFramer := context.WithCancel(canxCtx)
	frames := framer(framerCtx, svcs, camera, errorStream, statsStream)

	defer func() {
		if r := recover(); r != nil {
			perr := xerrors.FromRecover(r)
			lgr.Logger.Error("responder panic recovered", slog.Any("error", perr))
			err = model.GenError("responder", perr, map[string]interface{}{"camera": camera.Name}, "response loop panicked")
		}
		release(canxCtx, loop, stopFramer, frames)
	}()

	statsTicker := time.NewTicker(time.Duration(max(svcs.CfgSvc.GetStatsPeriodicTimeout(), 1)) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("responder context cancelled")
			return nil

		case <-statsTicker.C:
			loop.publishStats()

		case f, ok := <-frames:
			if !ok {
				if canxCtx.Err() != nil {
					return nil
				}
				lgr.Logger.Error("frame source stopped", slog.String("camera", camera.Name))
				return ErrFrameAcquisition
			}
			loop.process(canxCtx, f)
		}
	}
}

func (l *responderLoop) process(ctx context.Context, f FrameData) {
	defer f.Mat.Close() // Crucial to close the image to avoid memory leaks

	begin := time.Now()
	params := l.svcs.CfgSvc.GetResponderParameters()

	regions, err := l.svcs.DetectorSvc.Detect(f.Mat)
	if err != nil {
		// No decision without a detection result
		report(l.errorStream, model.GenError("responder",
			err,
			map[string]interface{}{"sequence": f.Sequence},
			"detection failed"))
		return
	}

	annotate(&f.Mat, regions, params.Padding, l.controller.Episode())

	jpeg, err := encodeJPEG(f.Mat, params.JPEGQuality)
	if err != nil {
		l.stats.EncodeFailures++
		l.svcs.MetricsSvc.IncCounter(metrics.EncodeFailuresTotal, 1)
		lgr.Logger.Warn("frame skipped", slog.Int64("sequence", f.Sequence), slog.Any("error", err))
	}

	d := l.controller.Process(ctx, model.FrameInfo{
		Sequence:  f.Sequence,
		Width:     f.Mat.Cols(),
		Height:    f.Mat.Rows(),
		Timestamp: f.Timestamp,
		Snapshot:  jpeg,
	}, regions)

	if jpeg != nil {
		l.svcs.Broadcaster.Publish(jpeg)
	}

	for _, rec := range d.Closed {
		l.recorder.Finish(rec)
	}
	l.recorder.Write(d.Episode, f.Mat)

	traced := responder.TraceContext(ctx, d.Episode.ID, f.Sequence)
	for _, fault := range d.Faults {
		l.fault(traced, fault)
	}

	l.observe(traced, d, time.Since(begin))
}

func (l *responderLoop) observe(ctx context.Context, d responder.Decision, elapsed time.Duration) {
	m := l.svcs.MetricsSvc

	l.stats.Frames++
	m.IncCounter(metrics.FramesTotal, 1)
	m.ObserveLatency(metrics.FrameProcessingSeconds, elapsed.Seconds())
	l.totalProcTime += elapsed

	if d.Detected {
		l.stats.DetectedFrames++
		m.IncCounter(metrics.DetectedFramesTotal, 1)
	}

	if d.Edge == responder.EdgeRising || d.Edge == responder.EdgeReopened {
		l.stats.Episodes++
		m.IncCounter(metrics.EpisodesTotal, 1)
	}

	if d.NotificationStarted {
		l.stats.Notifications++
		m.IncCounter(metrics.NotificationsTotal, 1)
	}

	if d.Episode.Active {
		m.SetGauge(metrics.EpisodeActive, 1)
	} else {
		m.SetGauge(metrics.EpisodeActive, 0)
	}

	if d.SuppressionIssued {
		if d.Suppression == model.SuppressionOpen {
			m.SetGauge(metrics.ValveOpen, 1)
		} else {
			m.SetGauge(metrics.ValveOpen, 0)
		}
	}

	if d.Edge != responder.EdgeNone {
		lgr.Logger.DebugContext(ctx, "responder decision",
			slog.String("edge", string(d.Edge)),
			slog.String("episode", d.Episode.ID),
			slog.String("aim", string(d.Aim)),
			slog.Bool("notified", d.Episode.Notified),
		)
	}
}

func (l *responderLoop) fault(ctx context.Context, err error) {
	l.stats.ActuatorFaults++
	l.svcs.MetricsSvc.IncCounter(metrics.ActuatorFaultsTotal, 1)
	lgr.Logger.ErrorContext(ctx, "actuator fault", slog.Any("error", err))
	report(l.errorStream, model.GenError("responder",
		err,
		map[string]interface{}{"camera": l.camera.Name},
		"actuator command not confirmed"))
}

func (l *responderLoop) publishStats() {
	uptime := time.Since(l.startTime)

	stats := l.stats
	stats.Uptime = int64(uptime.Seconds())
	if uptime >= time.Second {
		stats.FPS = int(float64(stats.Frames) / uptime.Seconds())
	}
	if stats.Frames > 0 {
		stats.AvgProcTime = l.totalProcTime.Seconds() / float64(stats.Frames)
	}

	report(l.statsStream, stats)
	report(l.statsStream, l.svcs.NotifierSvc.Stats())
}
