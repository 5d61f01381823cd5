package model

import (
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/mdobak/go-xerrors"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	if err != nil && xerrors.StackTrace(err) == nil {
		err = xerrors.WithStackTrace(err, 1)
	}
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Direction is the coarse aiming command for the nozzle servo.
type Direction string

const (
	AimLeft   Direction = "left"
	AimCenter Direction = "center"
	AimRight  Direction = "right"
)

// SuppressionState is the commanded state of the suppression valve.
type SuppressionState string

const (
	SuppressionOpen   SuppressionState = "open"
	SuppressionClosed SuppressionState = "closed"
)

// DetectionRegion is one candidate hazard location in a frame (top-left + size, pixels).
type DetectionRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func RegionFromRect(r image.Rectangle) DetectionRegion {
	return DetectionRegion{
		X:      r.Min.X,
		Y:      r.Min.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
	}
}

// CenterX returns the horizontal center of the region
func (r DetectionRegion) CenterX() int {
	return r.X + r.Width/2
}

func (r DetectionRegion) Area() int {
	return r.Width * r.Height
}

// Expand grows the region by padding on each side and clips it to the frame bounds.
func (r DetectionRegion) Expand(padding, frameWidth, frameHeight int) image.Rectangle {
	rect := image.Rect(r.X-padding, r.Y-padding, r.X+r.Width+padding, r.Y+r.Height+padding)
	return rect.Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}

// FrameInfo is what the response controller sees of a processed frame.
type FrameInfo struct {
	Sequence  int64
	Width     int
	Height    int
	Timestamp time.Time
	Snapshot  []byte // JPEG of the annotated frame, nil if encoding failed
}

// HazardEpisode is the cross-frame state owned by the response controller.
// Notified is only ever true while Active is true.
type HazardEpisode struct {
	ID               string    `json:"id"`
	Active           bool      `json:"active"`
	Notified         bool      `json:"notified"`
	StartedAt        time.Time `json:"startedAt"`
	CooldownSince    time.Time `json:"cooldownSince"`
	LastDecisionTime time.Time `json:"lastDecisionTime"`
	Frames           int       `json:"frames"`
	Notifications    int       `json:"notifications"`
}

// CoolingDown reports whether a falling edge is pending
func (e HazardEpisode) CoolingDown() bool {
	return e.Active && !e.CooldownSince.IsZero()
}

type EpisodeOutcome string

const (
	EpisodeClosed    EpisodeOutcome = "closed"
	EpisodeAbandoned EpisodeOutcome = "abandoned"
	EpisodeShutdown  EpisodeOutcome = "shutdown"
)

type EpisodeRecord struct {
	ID            string         `json:"id"`
	Camera        string         `json:"camera"`
	StartedAt     time.Time      `json:"startedAt"`
	ClosedAt      time.Time      `json:"closedAt"`
	Frames        int            `json:"frames"`
	Notifications int            `json:"notifications"`
	Outcome       EpisodeOutcome `json:"outcome"`
	ClipURL       string         `json:"clipUrl,omitempty"`
}

type Alert struct {
	EpisodeID   string          `json:"episodeId"`
	Camera      string          `json:"camera"`
	Region      DetectionRegion `json:"region"`
	Direction   Direction       `json:"direction"`
	Timestamp   time.Time       `json:"timestamp"`
	Snapshot    []byte          `json:"-"`
	SnapshotURL string          `json:"snapshotUrl,omitempty"`
}

type Camera struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	FramerType string `json:"framerType"`
}

type FramerStats struct {
	Name      string `json:"name"`
	Camera    string `json:"camera"`
	FPS       int    `json:"fps"`
	Frames    int    `json:"frames"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type ResponderStats struct {
	RunID          string  `json:"runId"`
	Camera         string  `json:"camera"`
	Frames         int     `json:"frames"`
	DetectedFrames int     `json:"detectedFrames"`
	Episodes       int     `json:"episodes"`
	Notifications  int     `json:"notifications"`
	ActuatorFaults int     `json:"actuatorFaults"`
	EncodeFailures int     `json:"encodeFailures"`
	FPS            int     `json:"fps"`
	AvgProcTime    float64 `json:"avgProcTime"`
	Uptime         int64   `json:"uptime"`
	Timestamp      int64   `json:"timestamp"`
}

type NotifierStats struct {
	Name      string `json:"name"`
	Jobs      int    `json:"jobs"`
	Dropped   int    `json:"dropped"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
