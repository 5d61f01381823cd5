package pipeline

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

// NewFramer picks the frame source for the camera's framer type
func NewFramer(camera model.Camera) Framer {
	if camera.FramerType == config.RandomFramerName {
		return RandomFramer
	}
	return CameraFramer
}

// CameraFramer owns the capture device. A failed read ends the framer: the
// channel is closed and the failure is reported on the error stream.
func CameraFramer(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, errorStream chan interface{}, statsStream chan interface{}) chan FrameData {
	out := make(chan FrameData, 1)

	go func() {
		defer close(out)

		params := svcs.CfgSvc.GetCameraParameters()

		webcam, err := gocv.OpenVideoCapture(camera.URL)
		if err != nil {
			report(errorStream, model.GenError("camera_framer",
				xerrors.Errorf("opening %s: %v: %w", camera.URL, err, ErrFrameAcquisition),
				map[string]interface{}{"camera": camera.Name},
				"error opening camera"))
			return
		}
		defer func() {
			if err := webcam.Close(); err != nil {
				lgr.Logger.Warn("camera release failed", slog.Any("error", err))
			}
			lgr.Logger.Info("camera released", slog.String("camera", camera.Name))
		}()

		if params.Width > 0 && params.Height > 0 {
			webcam.Set(gocv.VideoCaptureFrameWidth, float64(params.Width))
			webcam.Set(gocv.VideoCaptureFrameHeight, float64(params.Height))
		}

		lgr.Logger.Info("camera framer started",
			slog.String("camera", camera.Name),
			slog.String("url", camera.URL),
		)

		var startTime = time.Now().Unix()
		var frames = 0
		var errors = 0

		defer func() {
			uptime := time.Now().Unix() - startTime
			fps := 0
			if uptime > 0 {
				fps = int(float64(frames) / float64(uptime))
			}
			report(statsStream, model.FramerStats{
				Name:   "cameraFramer",
				Camera: camera.Name,
				Frames: frames,
				Errors: errors,
				Uptime: uptime,
				FPS:    fps,
			})
		}()

		var seq int64
		for {
			select {
			case <-canxCtx.Done():
				lgr.Logger.Info("camera framer context cancelled")
				return
			default:
			}

			img := gocv.NewMat()
			if ok := webcam.Read(&img); !ok || img.Empty() {
				errors++
				img.Close() // Crucial to close the image to avoid memory leaks
				report(errorStream, model.GenError("camera_framer",
					ErrFrameAcquisition,
					map[string]interface{}{"camera": camera.Name, "frames": frames},
					"failed to capture frame"))
				return
			}

			frames++
			seq++
			if !send(canxCtx, out, FrameData{Mat: img, Sequence: seq, Timestamp: time.Now()}) {
				img.Close()
				return
			}
		}
	}()

	return out
}

// RandomFramer produces flat noise-free frames at the configured rate. It is
// used by the simulator together with the periodic detector.
func RandomFramer(canxCtx context.Context, svcs ServicesFactory, camera model.Camera, _ chan interface{}, statsStream chan interface{}) chan FrameData {
	out := make(chan FrameData, 1)

	go func() {
		defer close(out)

		params := svcs.CfgSvc.GetCameraParameters()
		width, height := params.Width, params.Height
		if width <= 0 || height <= 0 {
			width, height = 640, 480
		}
		fps := max(params.FPS, 1)

		lgr.Logger.Info("random framer started",
			slog.String("camera", camera.Name),
			slog.Int("fps", fps),
		)

		var startTime = time.Now().Unix()
		var frames = 0

		defer func() {
			uptime := time.Now().Unix() - startTime
			rate := 0
			if uptime > 0 {
				rate = int(float64(frames) / float64(uptime))
			}
			report(statsStream, model.FramerStats{
				Name:   "randomFramer",
				Camera: camera.Name,
				Frames: frames,
				Uptime: uptime,
				FPS:    rate,
			})
		}()

		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()

		var seq int64
		for {
			select {
			case <-canxCtx.Done():
				lgr.Logger.Info("random framer context cancelled")
				return

			case now := <-ticker.C:
				// Slowly varying gray so the stream visibly moves
				shade := float64(40 + seq%60)
				img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(shade, shade, shade, 0), height, width, gocv.MatTypeCV8UC3)

				frames++
				seq++
				if !send(canxCtx, out, FrameData{Mat: img, Sequence: seq, Timestamp: now}) {
					img.Close()
					return
				}
			}
		}
	}()

	return out
}

func send(canxCtx context.Context, out chan FrameData, frame FrameData) bool {
	// WARNING: We need an extra check to make sure we don't block after cancellation
	select {
	case <-canxCtx.Done():
		return false
	case out <- frame:
		return true
	}
}
