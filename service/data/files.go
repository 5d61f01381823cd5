package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
)

var ErrEpisodeNotFound = xerrors.New("episode not found")

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

// NewFilesDB keeps one pretty-printed JSON array per entity in the data folder
func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		customErr.Processor = "N/A"
		customErr.Message = fmt.Sprintf("%v", e)
		customErr.StackTrace = "N/A"
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	// Create an error object to persist
	errorData := struct {
		Timestamp  int64                  `json:"timestamp"`
		Processor  string                 `json:"processor"`
		Inner      string                 `json:"innerError"`
		Message    string                 `json:"message"`
		StackTrace string                 `json:"stackTrace"`
		Misc       map[string]interface{} `json:"misc"`
	}{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	return svc.save(errorData, "errors")
}

func (svc *filesDBService) NewEpisode(record model.EpisodeRecord) error {
	return svc.save(record, "episodes")
}

// UpdateEpisodeClip sets the clip location of a stored episode
func (svc *filesDBService) UpdateEpisodeClip(id, clipURL string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	episodes, err := retrieveEntites[model.EpisodeRecord]("episodes", svc.CfgSvc)
	if err != nil {
		return err
	}

	_, idx, ok := lo.FindIndexOf(episodes, func(e model.EpisodeRecord) bool {
		return e.ID == id
	})
	if !ok {
		return xerrors.Errorf("episode %s: %w", id, ErrEpisodeNotFound)
	}

	episodes[idx].ClipURL = clipURL
	return writeEntities(episodes, "episodes", svc.CfgSvc)
}

func (svc *filesDBService) RetrieveEpisodes() ([]model.EpisodeRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntites[model.EpisodeRecord]("episodes", svc.CfgSvc)
}

func (svc *filesDBService) NewFramerStats(stats model.FramerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.save(stats, "framer-stats")
}

func (svc *filesDBService) NewResponderStats(stats model.ResponderStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.save(stats, "responder-stats")
}

func (svc *filesDBService) NewNotifierStats(stats model.NotifierStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.save(stats, "notifier-stats")
}

func (svc *filesDBService) save(entity interface{}, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(entity, filename, svc.CfgSvc)
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntites[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)
	return writeEntities(entities, filename, cfgsvc)
}

func writeEntities[T any](entities []T, filename string, cfgsvc config.IService) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetDataFolder(), 0o755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(entityPath(filename, cfgsvc), data, 0o644)
}

func retrieveEntites[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityPath(filename, cfgsvc))
	if err != nil {
		// WARNING: File not found, return empty slice
		return entities, nil
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}

	return entities, nil
}

func entityPath(filename string, cfgsvc config.IService) string {
	return filepath.Join(cfgsvc.GetDataFolder(), filename+".json")
}
