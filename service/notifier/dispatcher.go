package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
	"github.com/khaledhikmat/fs-go/service/storage"
)

type dispatcher struct {
	cfgSvc      config.IService
	storageSvc  storage.IService
	metricsSvc  metrics.IService
	channels    []Channel
	errorStream chan interface{}
	in          chan model.Alert
	startTime   time.Time

	mu    sync.Mutex
	stats model.NotifierStats
}

// NewDispatcher starts the background job runner. Jobs are queued on a bounded
// channel and processed one at a time; a full queue drops the job.
func NewDispatcher(canxCtx context.Context,
	cfgSvc config.IService,
	storageSvc storage.IService,
	metricsSvc metrics.IService,
	channels []Channel,
	errorStream chan interface{}) IService {
	queueSize := cfgSvc.GetNotifierParameters().QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	d := &dispatcher{
		cfgSvc:      cfgSvc,
		storageSvc:  storageSvc,
		metricsSvc:  metricsSvc,
		channels:    channels,
		errorStream: errorStream,
		in:          make(chan model.Alert, queueSize),
		startTime:   time.Now(),
		stats:       model.NotifierStats{Name: "dispatcher"},
	}

	lgr.Logger.Info(
		"notification dispatcher starting...",
		slog.Any("channels", lo.Map(channels, func(c Channel, _ int) string { return c.Name() })),
		slog.Int("queue", queueSize),
	)

	go d.run(canxCtx)

	return d
}

func (d *dispatcher) Notify(alert model.Alert) bool {
	select {
	case d.in <- alert:
		d.mu.Lock()
		d.stats.Jobs++
		d.mu.Unlock()
		return true
	default:
		lgr.Logger.Warn("notification queue full, dropping alert",
			slog.String("episode", alert.EpisodeID),
		)
		d.mu.Lock()
		d.stats.Dropped++
		d.mu.Unlock()
		d.metricsSvc.IncCounter(metrics.NotificationsDroppedTotal, 1)
		return false
	}
}

func (d *dispatcher) Stats() model.NotifierStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.Uptime = int64(time.Since(d.startTime).Seconds())
	return stats
}

func (d *dispatcher) run(canxCtx context.Context) {
	// Jobs already picked up finish even if the process is shutting down
	jobCtx := context.WithoutCancel(canxCtx)

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"notification dispatcher context cancelled",
			)
			return

		case alert := <-d.in:
			d.process(jobCtx, alert)
		}
	}
}

func (d *dispatcher) process(ctx context.Context, alert model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			d.fail("dispatcher", fmt.Errorf("panic: %v", r), alert)
		}
	}()

	timeout := d.cfgSvc.GetNotifierParameters().ChannelTimeout

	if len(alert.Snapshot) > 0 && d.storageSvc != nil {
		storeCtx, cancel := context.WithTimeout(ctx, timeout)
		key := fmt.Sprintf("snapshots/%s_%s_%d.jpg", alert.Camera, alert.EpisodeID, alert.Timestamp.Unix())
		url, err := d.storageSvc.Store(storeCtx, key, alert.Snapshot, "image/jpeg")
		cancel()
		if err != nil {
			d.fail("storage", err, alert)
		} else {
			alert.SnapshotURL = url
		}
	}

	for _, ch := range d.channels {
		chCtx, cancel := context.WithTimeout(ctx, timeout)
		err := ch.Send(chCtx, alert)
		cancel()
		if err != nil {
			d.fail(ch.Name(), err, alert)
			continue
		}

		lgr.Logger.Debug(
			"alert delivered",
			slog.String("channel", ch.Name()),
			slog.String("episode", alert.EpisodeID),
		)
	}
}

func (d *dispatcher) fail(channel string, err error, alert model.Alert) {
	d.mu.Lock()
	d.stats.Errors++
	d.mu.Unlock()
	d.metricsSvc.IncCounter(metrics.NotificationFailuresTotal, 1)

	lgr.Logger.Error(
		"notification channel failed",
		slog.String("channel", channel),
		slog.String("episode", alert.EpisodeID),
		slog.Any("error", err),
	)

	if d.errorStream == nil {
		return
	}

	// Never block the job on the error stream
	select {
	case d.errorStream <- model.GenError("notifier_"+channel,
		err,
		map[string]interface{}{"episode": alert.EpisodeID},
		"error delivering alert"):
	default:
	}
}
