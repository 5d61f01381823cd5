package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/fs-go/model"
)

var (
	regionColor = color.RGBA{R: 255, A: 255}
	alarmColor  = color.RGBA{R: 255, G: 64, B: 64, A: 255}
	calmColor   = color.RGBA{G: 200, A: 255}
)

// annotate draws every region grown by padding and clipped to the frame, plus
// a one-line status banner. It only changes pixels.
func annotate(img *gocv.Mat, regions []model.DetectionRegion, padding int, episode model.HazardEpisode) {
	for _, r := range regions {
		rect := r.Expand(padding, img.Cols(), img.Rows())
		if rect.Empty() {
			continue
		}
		gocv.Rectangle(img, rect, regionColor, 2)
	}

	text, c := status(len(regions) > 0, episode)
	gocv.PutText(img, text, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, c, 2)
}

func status(detected bool, episode model.HazardEpisode) (string, color.RGBA) {
	switch {
	case detected:
		return "FIRE DETECTED", alarmColor
	case episode.CoolingDown():
		return fmt.Sprintf("COOLDOWN since %s", episode.CooldownSince.Format("15:04:05")), alarmColor
	default:
		return "CLEAR", calmColor
	}
}
