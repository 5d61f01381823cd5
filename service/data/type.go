package data

import "github.com/khaledhikmat/fs-go/model"

type IService interface {
	NewError(err interface{}) error
	NewEpisode(record model.EpisodeRecord) error
	UpdateEpisodeClip(id, clipURL string) error
	RetrieveEpisodes() ([]model.EpisodeRecord, error)
	NewFramerStats(stats model.FramerStats) error
	NewResponderStats(stats model.ResponderStats) error
	NewNotifierStats(stats model.NotifierStats) error
}
