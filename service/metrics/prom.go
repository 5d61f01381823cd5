package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	FramesTotal               = "fs_frames_total"
	DetectedFramesTotal       = "fs_detected_frames_total"
	EpisodesTotal             = "fs_episodes_total"
	NotificationsTotal        = "fs_notifications_total"
	NotificationsDroppedTotal = "fs_notifications_dropped_total"
	NotificationFailuresTotal = "fs_notification_failures_total"
	ActuatorFaultsTotal       = "fs_actuator_faults_total"
	EncodeFailuresTotal       = "fs_encode_failures_total"

	EpisodeActive = "fs_episode_active"
	ValveOpen     = "fs_valve_open"
	StreamViewers = "fs_stream_viewers"

	FrameProcessingSeconds = "fs_frame_processing_seconds"
)

type IService interface {
	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
	ObserveLatency(name string, seconds float64)
}

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewProm registers the fire suppression metrics on reg
func NewProm(reg prometheus.Registerer) *PromObs {
	counters := map[string]prometheus.Counter{}
	for name, help := range map[string]string{
		FramesTotal:               "Frames processed by the response loop.",
		DetectedFramesTotal:       "Frames with at least one hazard region.",
		EpisodesTotal:             "Hazard episodes opened.",
		NotificationsTotal:        "Notification jobs started.",
		NotificationsDroppedTotal: "Notification jobs dropped because the queue was full.",
		NotificationFailuresTotal: "Notification channel deliveries that failed.",
		ActuatorFaultsTotal:       "Actuator commands that could not be confirmed.",
		EncodeFailuresTotal:       "Frames that could not be encoded for streaming.",
	} {
		counters[name] = prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	gauges := map[string]prometheus.Gauge{}
	for name, help := range map[string]string{
		EpisodeActive: "1 while a hazard episode is active.",
		ValveOpen:     "1 while the suppression valve is commanded open.",
		StreamViewers: "Connected MJPEG viewers.",
	} {
		gauges[name] = prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    FrameProcessingSeconds,
		Help:    "Time spent detecting, deciding and encoding one frame.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	for _, c := range counters {
		reg.MustRegister(c)
	}
	for _, g := range gauges {
		reg.MustRegister(g)
	}
	reg.MustRegister(latency)

	return &PromObs{
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			FrameProcessingSeconds: latency,
		},
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}
