package mode

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/pipeline"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

const recentEpisodes = 10

// Episodes reports the persisted episode history and exits.
func Episodes(_ context.Context, svcs pipeline.ServicesFactory) error {
	episodes, err := svcs.DataSvc.RetrieveEpisodes()
	if err != nil {
		return err
	}

	byOutcome := lo.CountValuesBy(episodes, func(e model.EpisodeRecord) model.EpisodeOutcome {
		return e.Outcome
	})

	lgr.Logger.Info("episode history",
		slog.Int("total", len(episodes)),
		slog.Int("closed", byOutcome[model.EpisodeClosed]),
		slog.Int("abandoned", byOutcome[model.EpisodeAbandoned]),
		slog.Int("shutdown", byOutcome[model.EpisodeShutdown]),
		slog.Int("notifications", lo.SumBy(episodes, func(e model.EpisodeRecord) int {
			return e.Notifications
		})),
	)

	for _, e := range lo.Subset(episodes, -recentEpisodes, recentEpisodes) {
		lgr.Logger.Info("episode",
			slog.String("id", e.ID),
			slog.String("camera", e.Camera),
			slog.Time("startedAt", e.StartedAt),
			slog.Duration("duration", e.ClosedAt.Sub(e.StartedAt)),
			slog.Int("frames", e.Frames),
			slog.String("outcome", string(e.Outcome)),
			slog.String("clip", e.ClipURL),
		)
	}

	return nil
}
