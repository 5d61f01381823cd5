package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

const clipUploadTimeout = 2 * time.Minute

// WARNING:
// GoCV writes barely compressed frames, so clips of long episodes get large.
// Only frames of an active episode are recorded.

// episodeRecorder writes the annotated frames of an active episode to an MP4
// clip. When the episode ends the record is persisted, then the clip is
// uploaded through the storage service and its location stored.
type episodeRecorder struct {
	svcs        ServicesFactory
	camera      model.Camera
	errorStream chan interface{}
	enabled     bool
	fps         float64

	episodeID string
	filename  string
	writer    *gocv.VideoWriter
	size      image.Point
	frames    int

	uploads sync.WaitGroup
}

func newEpisodeRecorder(svcs ServicesFactory, camera model.Camera, errorStream chan interface{}) *episodeRecorder {
	return &episodeRecorder{
		svcs:        svcs,
		camera:      camera,
		errorStream: errorStream,
		enabled:     svcs.CfgSvc.GetResponderParameters().RecordClips,
		fps:         float64(max(svcs.CfgSvc.GetCameraParameters().FPS, 1)),
	}
}

// Write appends the frame to the clip of the given episode, starting the clip
// on the first frame. Inactive episodes are ignored.
func (r *episodeRecorder) Write(episode model.HazardEpisode, frame gocv.Mat) {
	if !r.enabled || !episode.Active || frame.Empty() {
		return
	}

	if r.writer != nil && r.episodeID != episode.ID {
		// Reopened episodes are finished by the loop; this only guards a missed hand-off
		r.discard()
	}

	if r.writer == nil {
		if err := r.start(episode.ID, frame); err != nil {
			report(r.errorStream, model.GenError("episode_recorder",
				err,
				map[string]interface{}{"episode": episode.ID},
				"error starting episode clip"))
			r.enabled = false
			return
		}
	}

	out := frame
	if frame.Cols() != r.size.X || frame.Rows() != r.size.Y {
		// Resize the frame to match the video dimensions
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(frame, &resized, r.size, 0, 0, gocv.InterpolationLinear); err != nil {
			lgr.Logger.Warn("clip frame resize failed", slog.Any("error", err))
			return
		}
		out = resized
	}

	if err := r.writer.Write(out); err != nil {
		lgr.Logger.Warn("clip frame write failed",
			slog.String("episode", r.episodeID),
			slog.Any("error", err),
		)
		return
	}
	r.frames++
}

// Finish persists the episode record right away. If the episode has a clip,
// the clip is closed here, uploaded in the background and its location is
// added to the stored record once the upload succeeds.
func (r *episodeRecorder) Finish(rec model.EpisodeRecord) {
	r.persist(rec)
	if r.writer == nil || r.episodeID != rec.ID {
		return
	}

	filename, frames := r.filename, r.frames
	r.closeWriter()

	r.uploads.Add(1)
	go func() {
		defer r.uploads.Done()
		defer func() {
			if err := recover(); err != nil {
				lgr.Logger.Error("clip upload panic recovered", slog.Any("panic", err))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), clipUploadTimeout)
		defer cancel()

		url, err := r.svcs.StorageSvc.StoreFile(ctx, filename, "video/mp4")
		if err != nil {
			report(r.errorStream, model.GenError("episode_recorder",
				err,
				map[string]interface{}{"episode": rec.ID, "file": filename},
				"error storing episode clip"))
			return
		}

		lgr.Logger.Info("episode clip stored",
			slog.String("episode", rec.ID),
			slog.Int("frames", frames),
			slog.String("url", url),
		)
		if url != filename {
			if err := os.Remove(filename); err != nil {
				lgr.Logger.Warn("error deleting the local clip", slog.String("file", filename), slog.Any("error", err))
			}
		}

		if err := r.svcs.DataSvc.UpdateEpisodeClip(rec.ID, url); err != nil {
			report(r.errorStream, model.GenError("episode_recorder",
				err,
				map[string]interface{}{"episode": rec.ID, "url": url},
				"error recording clip location"))
		}
	}()
}

// Wait blocks until pending uploads finish or ctx is done
func (r *episodeRecorder) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.uploads.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lgr.Logger.Warn("giving up on pending clip uploads")
	}
}

// Close drops an unfinished clip
func (r *episodeRecorder) Close() {
	r.discard()
}

func (r *episodeRecorder) start(episodeID string, frame gocv.Mat) error {
	folder := r.svcs.CfgSvc.GetRecordingsFolder()
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	filename := filepath.Join(folder, fmt.Sprintf("%s_%s.mp4", r.camera.Name, episodeID))
	writer, err := gocv.VideoWriterFile(filename, "avc1", r.fps, frame.Cols(), frame.Rows(), true)
	if err != nil {
		return err
	}

	lgr.Logger.Info("episode clip started",
		slog.String("episode", episodeID),
		slog.String("filename", filename),
	)

	r.writer = writer
	r.episodeID = episodeID
	r.filename = filename
	r.size = image.Pt(frame.Cols(), frame.Rows())
	r.frames = 0
	return nil
}

func (r *episodeRecorder) closeWriter() {
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			lgr.Logger.Warn("clip writer close failed", slog.Any("error", err))
		}
	}
	r.writer = nil
	r.episodeID = ""
	r.filename = ""
	r.frames = 0
}

func (r *episodeRecorder) discard() {
	filename := r.filename
	r.closeWriter()
	if filename != "" {
		_ = os.Remove(filename)
	}
}

func (r *episodeRecorder) persist(rec model.EpisodeRecord) {
	if err := r.svcs.DataSvc.NewEpisode(rec); err != nil {
		report(r.errorStream, model.GenError("episode_recorder",
			err,
			map[string]interface{}{"episode": rec.ID},
			"error persisting episode"))
	}
}
