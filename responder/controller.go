package responder

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/actuator"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/notifier"
)

type Edge string

const (
	EdgeNone     Edge = "none"
	EdgeRising   Edge = "rising"
	EdgeFalling  Edge = "falling"
	EdgeReopened Edge = "reopened"
	EdgeResumed  Edge = "resumed"
	EdgeClosed   Edge = "closed"
)

// Decision is what the controller did for one frame.
type Decision struct {
	Detected            bool
	Edge                Edge
	Aim                 model.Direction
	AimIssued           bool
	Suppression         model.SuppressionState
	SuppressionIssued   bool
	NotificationStarted bool
	NotificationQueued  bool
	Closed              []model.EpisodeRecord
	Faults              []error
	Episode             model.HazardEpisode
}

// Controller owns the hazard episode and turns per-frame detections into
// actuator commands and notification jobs. It is driven by a single loop
// and holds no locks.
type Controller struct {
	camera string
	params config.ResponderParameters
	actSvc actuator.IService
	ntfSvc notifier.IService
	newID  func() string

	episode      model.HazardEpisode
	prevDetected bool
	sequence     int64
	// set when closing the valve could not be confirmed; retried on idle frames
	closePending bool
}

func NewController(camera string, params config.ResponderParameters, actSvc actuator.IService, ntfSvc notifier.IService) *Controller {
	if params.ReopenPolicy == "" {
		params.ReopenPolicy = config.ReopenRenotify
	}

	return &Controller{
		camera: camera,
		params: params,
		actSvc: actSvc,
		ntfSvc: ntfSvc,
		newID:  uuid.NewString,
	}
}

// Episode returns a copy of the current episode state
func (c *Controller) Episode() model.HazardEpisode {
	return c.episode
}

// Start commands the neutral state: nozzle centered and valve closed.
func (c *Controller) Start(ctx context.Context) error {
	var result error
	if err := c.actSvc.SetAim(ctx, model.AimCenter); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.actSvc.SetSuppression(ctx, model.SuppressionClosed); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// Process runs the decision algorithm for one frame. The frame timestamp is
// the clock for the cooldown deadline.
func (c *Controller) Process(ctx context.Context, frame model.FrameInfo, regions []model.DetectionRegion) Decision {
	now := frame.Timestamp
	c.sequence = frame.Sequence
	d := Decision{
		Detected: len(regions) > 0,
		Edge:     EdgeNone,
	}

	if d.Detected {
		c.detected(ctx, now, frame, regions[0], &d)
	} else {
		c.idle(ctx, now, &d)
	}

	c.prevDetected = d.Detected
	c.episode.LastDecisionTime = now
	d.Episode = c.episode
	return d
}

func (c *Controller) detected(ctx context.Context, now time.Time, frame model.FrameInfo, region model.DetectionRegion, d *Decision) {
	d.Aim = classify(region, frame.Width)
	c.aim(ctx, d.Aim, d)

	switch {
	case !c.episode.Active:
		c.open(ctx, now)
		d.Edge = EdgeRising

	case c.episode.CoolingDown() && c.params.ReopenPolicy == config.ReopenResume:
		c.info(ctx, "hazard re-detected during cooldown, resuming episode",
			slog.String("episode", c.episode.ID),
		)
		c.episode.CooldownSince = time.Time{}
		d.Edge = EdgeResumed

	case c.episode.CoolingDown():
		d.Closed = append(d.Closed, c.record(now, model.EpisodeAbandoned))
		c.info(ctx, "hazard re-detected during cooldown, reopening episode",
			slog.String("abandoned", c.episode.ID),
		)
		c.open(ctx, now)
		d.Edge = EdgeReopened
	}

	if !c.episode.Notified {
		d.NotificationQueued = c.ntfSvc.Notify(model.Alert{
			EpisodeID: c.episode.ID,
			Camera:    c.camera,
			Region:    region,
			Direction: d.Aim,
			Timestamp: now,
			Snapshot:  frame.Snapshot,
		})
		// At most once per episode, even when the queue refused the job
		c.episode.Notified = true
		c.episode.Notifications++
		d.NotificationStarted = true
	}

	c.suppress(ctx, model.SuppressionOpen, d)
	c.episode.Frames++
}

func (c *Controller) idle(ctx context.Context, now time.Time, d *Decision) {
	if !c.episode.Active {
		if c.closePending {
			c.suppress(ctx, model.SuppressionClosed, d)
		}
		return
	}

	c.episode.Frames++

	if !c.episode.CoolingDown() {
		c.episode.CooldownSince = now
		d.Edge = EdgeFalling
		c.info(ctx, "hazard cleared, cooldown started",
			slog.String("episode", c.episode.ID),
			slog.Duration("cooldown", c.params.Cooldown),
		)
		if c.prevDetected {
			c.aim(ctx, model.AimCenter, d)
		}
		return
	}

	if now.Sub(c.episode.CooldownSince) < c.params.Cooldown {
		return
	}

	c.suppress(ctx, model.SuppressionClosed, d)
	d.Closed = append(d.Closed, c.record(now, model.EpisodeClosed))
	d.Edge = EdgeClosed
	c.info(ctx, "hazard episode closed",
		slog.String("episode", c.episode.ID),
		slog.Int("frames", c.episode.Frames),
	)
	c.episode = model.HazardEpisode{}
}

// Release is the shutdown step: valve closed, nozzle centered and any open
// episode recorded as interrupted. Every command is attempted.
func (c *Controller) Release(ctx context.Context) (*model.EpisodeRecord, error) {
	var result error
	if err := c.actSvc.SetSuppression(ctx, model.SuppressionClosed); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.actSvc.SetAim(ctx, model.AimCenter); err != nil {
		result = multierror.Append(result, err)
	}

	if !c.episode.Active {
		return nil, result
	}

	end := c.episode.LastDecisionTime
	if end.IsZero() {
		end = time.Now()
	}
	rec := c.record(end, model.EpisodeShutdown)
	c.episode = model.HazardEpisode{}
	return &rec, result
}

func (c *Controller) open(ctx context.Context, now time.Time) {
	c.episode = model.HazardEpisode{
		ID:        c.newID(),
		Active:    true,
		StartedAt: now,
	}
	c.info(ctx, "hazard episode opened",
		slog.String("episode", c.episode.ID),
		slog.String("camera", c.camera),
	)
}

// info logs under the current episode and frame
func (c *Controller) info(ctx context.Context, msg string, args ...any) {
	lgr.Logger.InfoContext(TraceContext(ctx, c.episode.ID, c.sequence), msg, args...)
}

func (c *Controller) record(now time.Time, outcome model.EpisodeOutcome) model.EpisodeRecord {
	return model.EpisodeRecord{
		ID:            c.episode.ID,
		Camera:        c.camera,
		StartedAt:     c.episode.StartedAt,
		ClosedAt:      now,
		Frames:        c.episode.Frames,
		Notifications: c.episode.Notifications,
		Outcome:       outcome,
	}
}

func (c *Controller) aim(ctx context.Context, dir model.Direction, d *Decision) {
	d.Aim = dir
	d.AimIssued = true
	if err := c.actSvc.SetAim(ctx, dir); err != nil {
		d.Faults = append(d.Faults, err)
	}
}

func (c *Controller) suppress(ctx context.Context, state model.SuppressionState, d *Decision) {
	d.Suppression = state
	d.SuppressionIssued = true
	err := c.actSvc.SetSuppression(ctx, state)
	if err != nil {
		d.Faults = append(d.Faults, err)
	}
	c.closePending = state == model.SuppressionClosed && err != nil
}

// TraceContext stamps log records with the episode as the trace id and the
// frame sequence as the span id. Episode ids that are not UUIDs are skipped.
func TraceContext(ctx context.Context, episodeID string, sequence int64) context.Context {
	id, err := uuid.Parse(episodeID)
	if err != nil {
		return ctx
	}
	var span [8]byte
	binary.BigEndian.PutUint64(span[:], uint64(sequence))
	return lgr.WithTrace(ctx, id, span)
}

// classify aims at the horizontal center of the region; a tie stays centered
func classify(region model.DetectionRegion, frameWidth int) model.Direction {
	cx := region.X + region.Width/2
	mid := frameWidth / 2
	switch {
	case cx < mid:
		return model.AimLeft
	case cx > mid:
		return model.AimRight
	default:
		return model.AimCenter
	}
}
